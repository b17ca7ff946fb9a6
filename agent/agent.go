// Package agent connects the briefing service to Gemini: it registers
// the news tool, threads session state through tool calls, and runs
// conversation turns with retry on transient model errors.
package agent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/scipunch/newsbrief/briefing"
	"github.com/scipunch/newsbrief/config"
	"github.com/scipunch/newsbrief/session"
)

//go:embed instruction.txt
var instruction string

const toolName = "fetch_news_briefing"

// maxToolTurns bounds tool round-trips within a single chat turn.
const maxToolTurns = 3

// Briefer produces a news briefing and the session state to carry
// forward.
type Briefer interface {
	Fetch(ctx context.Context, dateSpec string, state briefing.State) (briefing.Result, briefing.State)
}

// Agent is a conversational news assistant backed by Gemini.
type Agent struct {
	g       *genkit.Genkit
	tool    ai.Tool
	manager *session.Manager
	briefer Briefer
	retry   RetryConfig
}

// briefingRequest is the tool argument payload filled in by the model.
type briefingRequest struct {
	TargetDate string `json:"target_date,omitempty"`
}

// New initializes genkit with the Google Generative AI plugin and
// registers the briefing tool. It fails fast on invalid credentials.
func New(ctx context.Context, creds config.GeminiCredentials, briefer Briefer, manager *session.Manager) (*Agent, error) {
	if !creds.IsValid() {
		return nil, fmt.Errorf("invalid Gemini credentials: API key and model must be set")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{
			APIKey: creds.APIKey,
		}),
		genkit.WithDefaultModel(fmt.Sprintf("googleai/%s", creds.Model)),
	)

	a := &Agent{
		g:       g,
		manager: manager,
		briefer: briefer,
		retry:   DefaultRetryConfig(),
	}
	a.tool = genkit.DefineTool(g, toolName,
		"Fetches a news briefing from the configured feeds. The optional target_date "+
			"selects a day: pass the user's date string verbatim ('today', 'yesterday' "+
			"or YYYY-MM-DD), or omit it for the default recent-news range.",
		a.runBriefingTool)
	return a, nil
}

// runBriefingTool handles one tool invocation. The session travels in
// the request context; the briefing state written back here is saved
// when the surrounding chat turn completes.
func (a *Agent) runBriefingTool(ctx *ai.ToolContext, req briefingRequest) (briefing.Result, error) {
	sess := sessionFromContext(ctx.Context)
	if sess == nil {
		return briefing.Result{}, fmt.Errorf("no session bound to this request")
	}

	slog.Debug("briefing tool invoked", "session", sess.ID, "target_date", req.TargetDate)
	res, state := a.briefer.Fetch(ctx.Context, req.TargetDate, sess.Briefing)
	sess.Briefing = state
	return res, nil
}

// Chat runs one conversation turn and returns the assistant's reply.
// Turns on the same session run one at a time; the session is saved
// only after the turn succeeds.
func (a *Agent) Chat(ctx context.Context, sessionID, text string) (string, error) {
	var reply string
	err := a.manager.With(ctx, sessionID, func(sess *session.Session) error {
		messages := historyMessages(sess.History)
		messages = append(messages, ai.NewUserTextMessage(text))

		tctx := withSession(ctx, sess)
		out, err := withRetry(tctx, a.retry, func(callCtx context.Context) (string, error) {
			resp, err := genkit.Generate(callCtx, a.g,
				ai.WithSystem(systemPrompt(sess.Briefing)),
				ai.WithMessages(messages...),
				ai.WithTools(a.tool),
				ai.WithMaxTurns(maxToolTurns),
			)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		})
		if err != nil {
			return fmt.Errorf("failed to generate reply: %w", err)
		}

		sess.History = append(sess.History,
			session.Message{Role: session.RoleUser, Text: text},
			session.Message{Role: session.RoleModel, Text: out},
		)
		reply = out
		return nil
	})
	return reply, err
}

// sessionKey carries the active session through genkit into the tool
// handler.
type sessionKey struct{}

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// historyMessages converts stored history into model messages.
func historyMessages(history []session.Message) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleModel:
			messages = append(messages, ai.NewModelTextMessage(m.Text))
		default:
			messages = append(messages, ai.NewUserTextMessage(m.Text))
		}
	}
	return messages
}

// systemPrompt renders the instruction plus the briefing memory the
// follow-up rules refer to.
func systemPrompt(state briefing.State) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n## Briefing memory\n\n")

	if len(state.Presented) == 0 {
		b.WriteString("No briefing has been presented in this session yet.\n")
		return b.String()
	}

	blob, err := json.MarshalIndent(state.Presented, "", "  ")
	if err != nil {
		slog.Warn("failed to render briefing memory", "error", err)
		b.WriteString("No briefing has been presented in this session yet.\n")
		return b.String()
	}
	b.WriteString("The items below were presented to the user in the most recent briefing:\n\n")
	b.Write(blob)
	b.WriteString("\n")
	return b.String()
}
