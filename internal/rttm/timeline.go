package rttm

import (
	"sort"
)

// DefaultMergeGap is the largest silence, in seconds, bridged when joining
// same-speaker segments.
const DefaultMergeGap = 0.1

// boundaryEpsilon absorbs float rounding so that a gap of exactly the
// threshold is treated as inclusive.
const boundaryEpsilon = 1e-9

// MergeOverlapping joins same-speaker segments that overlap or are separated
// by at most gap seconds. The merged segment extends to the later end time and
// keeps the higher confidence. The input is not modified and the output is
// sorted by start time. Applying it to its own output is a no-op.
func MergeOverlapping(segments []Segment, gap float64) []Segment {
	if len(segments) == 0 {
		return []Segment{}
	}
	if gap < 0 {
		gap = 0
	}
	sorted := sortedCopy(segments)

	out := make([]Segment, 0, len(sorted))
	last := make(map[string]int)
	for _, seg := range sorted {
		idx, seen := last[seg.SpeakerID]
		if seen && seg.StartTime <= out[idx].EndTime+gap+boundaryEpsilon {
			prev := &out[idx]
			if seg.EndTime > prev.EndTime {
				prev.EndTime = seg.EndTime
			}
			prev.Duration = prev.EndTime - prev.StartTime
			if seg.Confidence > prev.Confidence {
				prev.Confidence = seg.Confidence
			}
			continue
		}
		last[seg.SpeakerID] = len(out)
		out = append(out, seg)
	}
	return out
}

// ActiveSpeakersAt returns the sorted, distinct speaker IDs whose segments
// contain t. Both segment boundaries are inclusive.
func ActiveSpeakersAt(segments []Segment, t float64) []string {
	seen := make(map[string]struct{})
	speakers := []string{}
	for _, seg := range segments {
		if t < seg.StartTime || t > seg.EndTime {
			continue
		}
		if _, ok := seen[seg.SpeakerID]; ok {
			continue
		}
		seen[seg.SpeakerID] = struct{}{}
		speakers = append(speakers, seg.SpeakerID)
	}
	sort.Strings(speakers)
	return speakers
}

// Track is the timeline row for one speaker.
type Track struct {
	SpeakerID string    `json:"speaker_id"`
	Segments  []Segment `json:"segments"`
}

// SpeakerTimeline groups segments per speaker as non-overlapping intervals
// sorted by start time. Tracks are ordered by speaker ID. Overlapping
// intervals of the same speaker are folded together; well-formed input comes
// back unchanged, each segment exactly once.
func SpeakerTimeline(segments []Segment) []Track {
	sorted := sortedCopy(segments)
	index := make(map[string]int)
	tracks := []Track{}
	for _, seg := range sorted {
		i, ok := index[seg.SpeakerID]
		if !ok {
			index[seg.SpeakerID] = len(tracks)
			tracks = append(tracks, Track{SpeakerID: seg.SpeakerID, Segments: []Segment{seg}})
			continue
		}
		track := &tracks[i]
		prev := &track.Segments[len(track.Segments)-1]
		if seg.StartTime < prev.EndTime {
			if seg.EndTime > prev.EndTime {
				prev.EndTime = seg.EndTime
				prev.Duration = prev.EndTime - prev.StartTime
			}
			if seg.Confidence > prev.Confidence {
				prev.Confidence = seg.Confidence
			}
			continue
		}
		track.Segments = append(track.Segments, seg)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].SpeakerID < tracks[j].SpeakerID })
	return tracks
}

// SpeakerStat summarizes one speaker's activity.
type SpeakerStat struct {
	SpeakerID    string  `json:"speaker_id"`
	Segments     int     `json:"segments"`
	TotalSeconds float64 `json:"total_seconds"`
	FirstStart   float64 `json:"first_start"`
	LastEnd      float64 `json:"last_end"`
}

// Stats returns per-speaker totals computed over the timeline, so overlapping
// same-speaker segments are not double counted.
func Stats(segments []Segment) []SpeakerStat {
	tracks := SpeakerTimeline(segments)
	stats := make([]SpeakerStat, 0, len(tracks))
	for _, track := range tracks {
		stat := SpeakerStat{SpeakerID: track.SpeakerID, Segments: len(track.Segments)}
		for i, seg := range track.Segments {
			stat.TotalSeconds += seg.EndTime - seg.StartTime
			if i == 0 {
				stat.FirstStart = seg.StartTime
			}
			if seg.EndTime > stat.LastEnd {
				stat.LastEnd = seg.EndTime
			}
		}
		stats = append(stats, stat)
	}
	return stats
}

func sortedCopy(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}
