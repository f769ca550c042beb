// Package summary hands the finished session to the external summarization
// service and normalizes whatever comes back. Every response field is
// optional on the wire; normalization fills documented defaults so the
// review screen never branches on missing data.
package summary

import (
	"context"

	"plenum/timeline"
	"plenum/transcript"
)

// Sentiment values the service may report. Anything else normalizes to
// Neutral.
const (
	SentimentPositive  = "Positive"
	SentimentNeutral   = "Neutral"
	SentimentTense     = "Tense"
	SentimentEnergetic = "Energetic"
)

// Request carries the artifact and the locally-held session data. Artifact
// bytes travel base64-encoded.
type Request struct {
	ArtifactBytes []byte               `json:"artifactBytes"`
	ContextText   string               `json:"contextText"`
	Transcript    []transcript.Segment `json:"transcript"`
	Highlights    []timeline.Highlight `json:"highlights"`
}

// Result is the normalized summarization outcome.
type Result struct {
	SummaryText       string               `json:"summaryText"`
	KeyPoints         []string             `json:"keyPoints"`
	ActionItems       []string             `json:"actionItems"`
	AttendeesDetected []string             `json:"attendeesDetected"`
	Sentiment         string               `json:"sentiment"`
	FollowUpEmail     string               `json:"followUpEmail"`
	Transcript        []transcript.Segment `json:"transcript"`
}

// Summarizer is the external collaborator boundary.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (Result, error)
}

// Normalize fills every omitted field with its default and overwrites the
// transcript with the locally-held one; the service's copy is never trusted.
func Normalize(res Result, local []transcript.Segment) Result {
	if res.KeyPoints == nil {
		res.KeyPoints = []string{}
	}
	if res.ActionItems == nil {
		res.ActionItems = []string{}
	}
	if res.AttendeesDetected == nil {
		res.AttendeesDetected = []string{}
	}
	switch res.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentTense, SentimentEnergetic:
	default:
		res.Sentiment = SentimentNeutral
	}
	res.Transcript = append([]transcript.Segment{}, local...)
	return res
}
