package services

import (
	"fmt"
	"strings"
)

const feedbackInstructionsFormat = `Analyze and rate the attached resume and suggest how to improve it.
The rating can be low if the resume is bad.
Be thorough and detailed. Don't be afraid to point out any mistakes or areas for improvement.
If there is a lot to improve, don't hesitate to give low scores. This is to help the user improve their resume.
If available, use the job description for the job the user is applying to, to give more detailed feedback.
If provided, take the job description into consideration.
The job title is: %s
The job description is:
%s

Provide the feedback as a JSON object with exactly this shape:
{
  "overallScore": number (0-100),
  "ATS": {"score": number (0-100), "tips": [{"type": "good" | "improve", "tip": string}]},
  "toneAndStyle": {"score": number (0-100), "tips": [{"type": "good" | "improve", "tip": string, "explanation": string}]},
  "content": {"score": number (0-100), "tips": [{"type": "good" | "improve", "tip": string, "explanation": string}]},
  "structure": {"score": number (0-100), "tips": [{"type": "good" | "improve", "tip": string, "explanation": string}]},
  "skills": {"score": number (0-100), "tips": [{"type": "good" | "improve", "tip": string, "explanation": string}]}
}
Return ONLY the JSON object, without any other text, preamble or backtick fences.`

// RenderFeedbackInstructions builds the instruction payload for the feedback
// analysis call from the job context. Pure; empty fields are rendered as
// explicit "not provided" markers so the model does not invent a posting.
func RenderFeedbackInstructions(jobTitle, jobDescription string) string {
	if strings.TrimSpace(jobTitle) == "" {
		jobTitle = "(not provided)"
	}
	if strings.TrimSpace(jobDescription) == "" {
		jobDescription = "(not provided)"
	}
	return fmt.Sprintf(feedbackInstructionsFormat, jobTitle, jobDescription)
}
