package service

// DefaultDigestSize is how many recent submissions go into a prompt.
const DefaultDigestSize = 3

// DigestScore is one question as presented to the language model.
type DigestScore struct {
	Topic    string   `json:"topic"`
	Score    *float64 `json:"score"`
	Max      *float64 `json:"max"`
	Category string   `json:"category"`
	Concepts []string `json:"concepts,omitempty"`
}

// DigestEntry is one homework in the digest.
type DigestEntry struct {
	HomeworkID string        `json:"homework_id"`
	Date       string        `json:"date"`
	Scores     []DigestScore `json:"scores"`
	Note       string        `json:"note,omitempty"`
}

// CompressedDigest is the windowed summary sent with the report prompt, oldest first.
type CompressedDigest []DigestEntry

// IsEmpty reports whether there is nothing worth sending to the report service.
func (d CompressedDigest) IsEmpty() bool {
	return len(d) == 0
}

// CompressDigest takes the k most recent submissions from a most-recent-first
// slice and returns them oldest first, trimmed to the fields the prompt uses.
// Concept labels are only kept when withConcepts is set.
func CompressDigest(submissions []NormalizedSubmission, k int, withConcepts bool) CompressedDigest {
	if k <= 0 {
		k = DefaultDigestSize
	}

	window := submissions
	if len(window) > k {
		window = window[:k]
	}

	digest := make(CompressedDigest, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		submission := window[i]
		entry := DigestEntry{
			HomeworkID: submission.HomeworkID,
			Date:       dayOnly(submission.Date),
			Scores:     make([]DigestScore, 0, len(submission.Scores)),
		}
		if submission.RawText != "" {
			entry.Note = "analysis unavailable"
		}

		for _, score := range submission.Scores {
			item := DigestScore{
				Topic:    score.Topic,
				Score:    score.Score,
				Max:      score.MaxScore,
				Category: score.Category,
			}
			if withConcepts && len(score.Concepts) > 0 {
				item.Concepts = append([]string(nil), score.Concepts...)
			}
			entry.Scores = append(entry.Scores, item)
		}

		digest = append(digest, entry)
	}

	return digest
}

func dayOnly(date string) string {
	if len(date) > 10 {
		return date[:10]
	}
	return date
}
