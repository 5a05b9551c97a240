package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"ragqa/internal/ragerr"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*healthOutput, error) {
		return &healthOutput{Body: healthBody{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Answer a question from the corpus",
		Tags:        []string{"chat"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-questions",
		Method:      http.MethodGet,
		Path:        "/questions",
		Summary:     "List answered questions, newest first",
		Tags:        []string{"questions"},
	}, s.handleListQuestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-question",
		Method:      http.MethodDelete,
		Path:        "/questions/{id}",
		Summary:     "Delete a question and its source links",
		Tags:        []string{"questions"},
	}, s.handleDeleteQuestion)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-all-questions",
		Method:      http.MethodDelete,
		Path:        "/questions",
		Summary:     "Delete every question",
		Tags:        []string{"questions"},
	}, s.handleDeleteAllQuestions)
}

// --- Request / response types ---

type healthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

type healthOutput struct {
	Body healthBody
}

type chatInput struct {
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Question to answer"`
		TopK     int    `json:"top_k,omitempty" minimum:"0" maximum:"100" doc:"Records to retrieve; 0 uses the server default"`
	}
}

type sourceBody struct {
	Rank     int     `json:"rank"`
	RecordID int64   `json:"id"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

type chatOutput struct {
	Body struct {
		QuestionID int64        `json:"question_id"`
		Question   string       `json:"question"`
		Answer     string       `json:"answer"`
		Context    string       `json:"context"`
		Sources    []sourceBody `json:"sources"`
	}
}

type questionBody struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at,omitempty"`
}

type listQuestionsOutput struct {
	Body []questionBody
}

type deleteQuestionInput struct {
	ID int64 `path:"id" doc:"Question ID"`
}

type messageOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// --- Handlers ---

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	ans, err := s.pipeline.Answer(ctx, input.Body.Question, input.Body.TopK)
	if err != nil {
		return nil, s.apiError("answering question", err)
	}
	out := &chatOutput{}
	out.Body.QuestionID = ans.QuestionID
	out.Body.Question = ans.Question
	out.Body.Answer = ans.Answer
	out.Body.Context = ans.Context
	out.Body.Sources = make([]sourceBody, len(ans.Sources))
	for i, src := range ans.Sources {
		out.Body.Sources[i] = sourceBody{
			Rank:     i + 1,
			RecordID: src.Record.ID,
			Source:   src.Record.Source,
			Score:    src.Score,
			Text:     src.Record.Text,
		}
	}
	return out, nil
}

func (s *Server) handleListQuestions(ctx context.Context, _ *struct{}) (*listQuestionsOutput, error) {
	qs, err := s.pipeline.ListQuestions(ctx)
	if err != nil {
		return nil, s.apiError("listing questions", err)
	}
	out := &listQuestionsOutput{Body: make([]questionBody, len(qs))}
	for i, q := range qs {
		out.Body[i] = questionBody{ID: q.ID, Question: q.Text, Answer: q.Answer}
		if !q.CreatedAt.IsZero() {
			out.Body[i].CreatedAt = q.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
	}
	return out, nil
}

func (s *Server) handleDeleteQuestion(ctx context.Context, input *deleteQuestionInput) (*messageOutput, error) {
	if err := s.pipeline.DeleteQuestion(ctx, input.ID); err != nil {
		return nil, s.apiError("deleting question", err)
	}
	out := &messageOutput{}
	out.Body.Message = fmt.Sprintf("question %d deleted", input.ID)
	return out, nil
}

func (s *Server) handleDeleteAllQuestions(ctx context.Context, _ *struct{}) (*messageOutput, error) {
	if err := s.pipeline.DeleteAllQuestions(ctx); err != nil {
		return nil, s.apiError("deleting questions", err)
	}
	out := &messageOutput{}
	out.Body.Message = "all questions deleted"
	return out, nil
}

// apiError converts a pipeline error to a huma status error. Internal
// failures are logged and reported without detail.
func (s *Server) apiError(op string, err error) error {
	status := ragerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "code", ragerr.CodeOf(err), "error", err)
	}
	switch status {
	case http.StatusNotFound, http.StatusBadRequest:
		return huma.NewError(status, err.Error())
	case http.StatusInternalServerError:
		return huma.Error500InternalServerError("internal server error")
	default:
		return huma.NewError(status, http.StatusText(status))
	}
}
