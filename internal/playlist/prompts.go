package playlist

import (
	"fmt"
	"strings"

	"github.com/cobardes/radia-fm-sub000/internal/model"
)

const draftSystemPrompt = `You are the music director of an intimate online radio station.
Given the songs played so far and why each was chosen, propose the next songs.
Favor musical connections a careful listener would notice: shared collaborators,
scenes, eras, samples, covers, or a mood handed from one track to the next.
Avoid the obvious greatest-hits pick unless it genuinely fits the thread.
For every song, write a short paragraph explaining the editorial choice.
Answer in prose, one song per paragraph, naming title and artist clearly.`

const coerceSystemPrompt = `You convert radio programming notes into structured data.
Copy each reason paragraph verbatim into the reason field. Do not summarize,
truncate or reword it.`

// draftUserPrompt formats the playlist history as a numbered list of
// "title by artist" plus reason, followed by the request.
func draftUserPrompt(history []model.PlaylistEntry, count int, guidelines string, language model.Language) string {
	var b strings.Builder

	if len(history) == 0 {
		b.WriteString("The station has not played anything yet.\n")
	} else {
		b.WriteString("Played so far:\n")
		for i, e := range history {
			fmt.Fprintf(&b, "%d. %s by %s\n   Reason: %s\n", i+1, e.Title, e.Artist, e.Reason)
		}
	}

	if guidelines != "" {
		fmt.Fprintf(&b, "\nStation guidelines: %s\n", guidelines)
	}
	fmt.Fprintf(&b, "\nPropose the next %d songs. Write your reasons in %s.\n", count, language.SpeechName())
	return b.String()
}

// coerceUserPrompt wraps the draft for the structuring pass.
func coerceUserPrompt(draft string) string {
	return "Extract every proposed song from these programming notes:\n\n" + draft
}

// candidateSchema is the strict output shape for the coercion model.
var candidateSchema = []byte(`{
  "type": "object",
  "properties": {
    "songs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "artist": {"type": "string"},
          "reason": {"type": "string"}
        },
        "required": ["title", "artist", "reason"],
        "additionalProperties": false
      }
    }
  },
  "required": ["songs"],
  "additionalProperties": false
}`)
