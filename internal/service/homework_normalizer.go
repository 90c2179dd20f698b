package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/gema-weekly-report/internal/models"
)

// PayloadKind names the column an analysis payload was taken from.
type PayloadKind string

const (
	// PayloadStructuredAnalysis is the grading agent's analysis column.
	PayloadStructuredAnalysis PayloadKind = "structured_analysis"
	// PayloadAlternateResult is the older result_json column.
	PayloadAlternateResult PayloadKind = "alternate_result"
	// PayloadScalarFallback is synthesised from score, percentage and grade.
	PayloadScalarFallback PayloadKind = "scalar_fallback"
)

// ScalarFields carries the discrete score columns of a submission.
type ScalarFields struct {
	Score      *float64
	Percentage *float64
	Grade      *string
}

// AnalysisPayload is the single payload chosen for a submission.
// Raw is set for the two JSON kinds, Scalars for the fallback.
type AnalysisPayload struct {
	Kind    PayloadKind
	Raw     json.RawMessage
	Scalars ScalarFields
}

// ScoreEntry is one graded question.
type ScoreEntry struct {
	Topic    string
	Score    *float64
	MaxScore *float64
	Category string
	Concepts []string
}

// NormalizedSubmission is the uniform shape every submission is reduced to.
type NormalizedSubmission struct {
	SubmissionID uint
	HomeworkID   string
	Date         string
	Source       PayloadKind
	Scores       []ScoreEntry
	// RawText holds an analysis payload that could not be parsed.
	RawText string
}

// SelectPayload picks the analysis payload by precedence: structured analysis,
// then the alternate result, then the scalar columns.
func SelectPayload(row models.HomeworkSubmission) AnalysisPayload {
	if hasJSONPayload(row.AgentAnalysisData) {
		return AnalysisPayload{Kind: PayloadStructuredAnalysis, Raw: json.RawMessage(row.AgentAnalysisData)}
	}
	if hasJSONPayload(row.ResultJSON) {
		return AnalysisPayload{Kind: PayloadAlternateResult, Raw: json.RawMessage(row.ResultJSON)}
	}
	return AnalysisPayload{
		Kind: PayloadScalarFallback,
		Scalars: ScalarFields{
			Score:      row.Score,
			Percentage: row.Percentage,
			Grade:      row.Grade,
		},
	}
}

// hasJSONPayload reports whether a column holds a usable payload. Empty
// values (null, "", {}, [], false, 0) count as absent so precedence falls
// through to the next column.
func hasJSONPayload(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return true
	}
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	case bool:
		return v
	case float64:
		return v != 0
	}
	return true
}

// NormalizeSubmission converts a raw row into a NormalizedSubmission. It never
// fails: a payload that cannot be parsed is kept as RawText.
func NormalizeSubmission(row models.HomeworkSubmission) NormalizedSubmission {
	payload := SelectPayload(row)

	normalized := NormalizedSubmission{
		SubmissionID: row.ID,
		HomeworkID:   rowHomeworkID(row),
		Date:         rowDate(row),
		Source:       payload.Kind,
		Scores:       []ScoreEntry{},
	}

	if payload.Kind == PayloadScalarFallback {
		if entry, ok := scalarEntry(payload.Scalars); ok {
			normalized.Scores = append(normalized.Scores, entry)
		}
		return normalized
	}

	doc, rawText, ok := decodeDocument(payload.Raw)
	if !ok {
		normalized.RawText = rawText
		return normalized
	}

	if id := stringValue(doc["homework_id"]); id != "" {
		normalized.HomeworkID = id
	}
	if date := stringValue(doc["submission_date"]); date != "" {
		normalized.Date = date
	}

	normalized.Scores = extractScores(doc)
	return normalized
}

// NormalizeSubmissions keeps the input order.
func NormalizeSubmissions(rows []models.HomeworkSubmission) []NormalizedSubmission {
	result := make([]NormalizedSubmission, 0, len(rows))
	for _, row := range rows {
		result = append(result, NormalizeSubmission(row))
	}
	return result
}

// decodeDocument parses a payload into a JSON object. A payload that is itself a
// JSON string (a double encoded column) is unwrapped once and parsed again.
func decodeDocument(raw json.RawMessage) (map[string]interface{}, string, bool) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, string(raw), false
	}

	if text, isString := value.(string); isString {
		trimmed := strings.TrimSpace(text)
		var inner interface{}
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, text, false
		}
		value = inner
	}

	doc, isObject := value.(map[string]interface{})
	if !isObject {
		return nil, string(raw), false
	}
	return doc, "", true
}

func extractScores(doc map[string]interface{}) []ScoreEntry {
	questions := questionList(doc)
	if questions == nil {
		if entry, ok := scalarEntryFromDocument(doc); ok {
			return []ScoreEntry{entry}
		}
		return []ScoreEntry{}
	}

	entries := make([]ScoreEntry, 0, len(questions))
	for _, item := range questions {
		question, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		entries = append(entries, ScoreEntry{
			Topic:    stringValue(question["topic"]),
			Score:    numberValue(question["total_score"]),
			MaxScore: numberValue(question["max_score"]),
			Category: stringValue(question["answer_category"]),
			Concepts: stringList(question["concept_required"]),
		})
	}
	return entries
}

// questionList accepts both {"question": {"questions": [...]}} and a top level
// {"questions": [...]}.
func questionList(doc map[string]interface{}) []interface{} {
	if nested, ok := doc["question"].(map[string]interface{}); ok {
		if list, ok := nested["questions"].([]interface{}); ok {
			return list
		}
	}
	if list, ok := doc["questions"].([]interface{}); ok {
		return list
	}
	return nil
}

func scalarEntryFromDocument(doc map[string]interface{}) (ScoreEntry, bool) {
	fields := ScalarFields{
		Score:      numberValue(doc["score"]),
		Percentage: numberValue(doc["percentage"]),
	}
	if grade := stringValue(doc["grade"]); grade != "" {
		fields.Grade = &grade
	}
	return scalarEntry(fields)
}

// scalarEntry builds the single score entry of the fallback payload. The
// achieved value is the score column; the maximum is derived from the
// percentage when both are known and defaults to 100 otherwise.
func scalarEntry(fields ScalarFields) (ScoreEntry, bool) {
	if fields.Score == nil && fields.Percentage == nil {
		return ScoreEntry{}, false
	}

	entry := ScoreEntry{Topic: "Overall"}
	if fields.Grade != nil {
		entry.Category = strings.TrimSpace(*fields.Grade)
	}

	maxScore := 100.0
	switch {
	case fields.Score != nil:
		score := *fields.Score
		entry.Score = &score
		if fields.Percentage != nil && *fields.Percentage > 0 {
			maxScore = roundTo(score*100 / *fields.Percentage, 2)
		}
	default:
		percentage := *fields.Percentage
		entry.Score = &percentage
	}
	entry.MaxScore = &maxScore

	return entry, true
}

func rowHomeworkID(row models.HomeworkSubmission) string {
	if row.HomeworkID != nil && strings.TrimSpace(*row.HomeworkID) != "" {
		return strings.TrimSpace(*row.HomeworkID)
	}
	return strconv.FormatUint(uint64(row.ID), 10)
}

func rowDate(row models.HomeworkSubmission) string {
	if row.SubmissionDate == nil || row.SubmissionDate.IsZero() {
		return ""
	}
	return row.SubmissionDate.UTC().Format(time.RFC3339)
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func numberValue(value interface{}) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func stringList(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringValue(item); s != "" {
			result = append(result, s)
		}
	}
	return result
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
