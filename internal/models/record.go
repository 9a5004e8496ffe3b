package models

import (
	"encoding/json"
	"fmt"
)

// RecordKeyPrefix namespaces resume records inside the shared key-value
// collection. Every record lives under "record:<id>".
const RecordKeyPrefix = "record:"

// RecordKey builds the key-value key for a record id.
func RecordKey(id string) string {
	return RecordKeyPrefix + id
}

// Record is the persisted unit representing one resume submission and its
// eventual feedback. It is written twice per successful submission: once
// provisionally with empty feedback, once with the analysis result filled in.
type Record struct {
	ID             string    `json:"id"`
	RawDocumentRef string    `json:"rawDocumentRef"`
	PreviewRef     string    `json:"previewRef"`
	CompanyName    string    `json:"companyName"`
	JobTitle       string    `json:"jobTitle"`
	JobDescription string    `json:"jobDescription"`
	Feedback       *Feedback `json:"feedback"`
}

// Feedback is the structured analysis payload returned by the model. The
// prompt pins this exact JSON shape, so a response that does not unmarshal
// into it is treated as malformed.
type Feedback struct {
	OverallScore int              `json:"overallScore"`
	ATS          FeedbackCategory `json:"ATS"`
	ToneAndStyle FeedbackCategory `json:"toneAndStyle"`
	Content      FeedbackCategory `json:"content"`
	Structure    FeedbackCategory `json:"structure"`
	Skills       FeedbackCategory `json:"skills"`
}

// FeedbackCategory scores one aspect of the resume and carries the tips the
// model produced for it.
type FeedbackCategory struct {
	Score int           `json:"score"`
	Tips  []FeedbackTip `json:"tips"`
}

// FeedbackTip is a single piece of advice. Type is "good" or "improve".
type FeedbackTip struct {
	Type        string `json:"type"`
	Tip         string `json:"tip"`
	Explanation string `json:"explanation,omitempty"`
}

// EncodeRecord serializes a record to the flat JSON payload stored in the
// key-value store.
func EncodeRecord(r *Record) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode record %s: %w", r.ID, err)
	}
	return string(data), nil
}

// DecodeRecord parses a stored key-value payload back into a Record.
func DecodeRecord(value string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return nil, fmt.Errorf("failed to decode record payload: %w", err)
	}
	return &r, nil
}

// ParseFeedback parses the text extracted from an inference response into the
// structured feedback payload.
func ParseFeedback(text string) (*Feedback, error) {
	var fb Feedback
	if err := json.Unmarshal([]byte(text), &fb); err != nil {
		return nil, fmt.Errorf("feedback text is not valid structured data: %w", err)
	}
	return &fb, nil
}
