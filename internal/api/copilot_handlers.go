package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rcourtman/octopilot/internal/agent"
	"github.com/rcourtman/octopilot/internal/ai/tools"
	internalerrors "github.com/rcourtman/octopilot/internal/errors"
	"github.com/rcourtman/octopilot/internal/logging"
	"github.com/rcourtman/octopilot/internal/metrics"
	"github.com/rcourtman/octopilot/internal/sse"
)

const (
	maxRequestBody = 1 << 20

	emptyQueryMessage = `Ask a question like "What are the projects in the space called Default?"`
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// queryBody is the body chat clients post. Supplied context is only read by
// submit_query.
type queryBody struct {
	agent.SuppliedContext
	Messages []chatMessage `json:"messages"`
}

// readQuery takes the query from ?message= or from the last chat message in the body.
func readQuery(r *http.Request) (string, queryBody, error) {
	var body queryBody
	if r.Body != nil && r.Method == http.MethodPost {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
		if err != nil {
			return "", body, internalerrors.New(internalerrors.KindInternal, "read_request", err)
		}
		if len(raw) > maxRequestBody {
			return "", body, internalerrors.NewInputTooLarge("read_request", errors.New("request body too large"))
		}
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				return "", body, internalerrors.NewInvalidArgument("read_request", "The request body was not valid JSON.")
			}
		}
	}

	if message := strings.TrimSpace(r.URL.Query().Get("message")); message != "" {
		return message, body, nil
	}
	if n := len(body.Messages); n > 0 {
		return strings.TrimSpace(body.Messages[n-1].Content), body, nil
	}
	return "", body, nil
}

func (s *Server) handleCopilot(w http.ResponseWriter, r *http.Request) {
	query, _, err := readQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if query == "" {
		s.writeAnswer(w, r, http.StatusOK, tools.NewTextResult(emptyQueryMessage))
		return
	}

	result, err := s.agent.Answer(r.Context(), agent.NewRequest(query, s.identity(r)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAnswer(w, r, http.StatusOK, result)
}

func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	query, body, err := readQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if query == "" {
		s.writeAnswer(w, r, http.StatusOK, tools.NewTextResult(emptyQueryMessage))
		return
	}

	req := agent.NewRequest(query, s.identity(r))
	req.Supplied = body.SuppliedContext
	result, err := s.agent.AnswerSupplied(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAnswer(w, r, http.StatusOK, result)
}

// handleQueryParse returns the entities found in a query. Clients that do not ask for
// an event stream get plain JSON.
func (s *Server) handleQueryParse(w http.ResponseWriter, r *http.Request) {
	streaming := sse.Accepts(r)

	query, _, err := readQuery(r)
	if err == nil && query == "" {
		err = internalerrors.NewInvalidArgument("query_parse", emptyQueryMessage)
	}
	var result tools.Result
	if err == nil {
		result, err = s.agent.ParseQuery(r.Context(), agent.NewRequest(query, s.identity(r)))
	}

	switch {
	case err != nil && streaming:
		s.writeError(w, r, err)
	case err != nil:
		s.logError(r, err)
		writeJSON(w, statusFor(err), map[string]string{"error": userMessage(err, s.oauth.LoginURL())})
	case streaming:
		s.writeAnswer(w, r, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusOK, result.Data)
	}
}

// writeError answers a failed query. The chat client only renders event streams with
// a 200 status, so every error is sent that way.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.logError(r, err)
	s.writeAnswer(w, r, http.StatusOK, tools.NewTextResult(userMessage(err, s.oauth.LoginURL())))
}

func (s *Server) logError(r *http.Request, err error) {
	kind := internalerrors.KindOf(err)
	metrics.RecordError(string(kind))

	level := zerolog.ErrorLevel
	if internalerrors.IsUserFacing(err) {
		level = zerolog.InfoLevel
	}
	logger := logging.FromContext(r.Context())
	logger.WithLevel(level).Err(err).Str("kind", string(kind)).Str("path", r.URL.Path).Msg("Query failed")
}

func statusFor(err error) int {
	switch internalerrors.KindOf(err) {
	case internalerrors.KindInvalidArgument, internalerrors.KindInputTooLarge:
		return http.StatusBadRequest
	case internalerrors.KindUserNotLoggedIn, internalerrors.KindUserNotConfigured, internalerrors.KindInvalidCredential:
		return http.StatusUnauthorized
	case internalerrors.KindNotAuthorized:
		return http.StatusForbidden
	case internalerrors.KindSpaceNotFound, internalerrors.KindResourceNotFound:
		return http.StatusNotFound
	case internalerrors.KindUpstreamRequestFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
