package state

// Stage is the pipeline position implied by which keys are present.
type Stage string

// Pipeline stages, in order.
const (
	StageNoDestination          Stage = "NO_DESTINATION"
	StageHasDestinationNoVideos Stage = "HAS_DESTINATION_NO_VIDEOS"
	StageHasVideosNoText        Stage = "HAS_VIDEOS_NO_TEXT"
	StageHasRawText             Stage = "HAS_RAW_TEXT"
	StageHasRefinedText         Stage = "HAS_REFINED_TEXT"
	StageHasItinerary           Stage = "HAS_ITINERARY"
)

// Stage derives the pipeline position of s. It only inspects keys; the
// state itself enforces no transitions.
func (s *State) Stage() Stage {
	switch {
	case s.String(KeyDestination) == "":
		return StageNoDestination
	case s.Has(KeyItinerary):
		return StageHasItinerary
	case len(s.Strings(KeyIdeasVideos)) == 0:
		return StageHasDestinationNoVideos
	case len(s.Strings(KeyIdeasRawText)) > 0:
		return StageHasRawText
	case len(s.Strings(KeyIdeasRefinedText)) > 0:
		return StageHasRefinedText
	default:
		return StageHasVideosNoText
	}
}
