package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careline/careline/internal/domain/appointment"
	"github.com/careline/careline/internal/platform/apperr"
	"github.com/careline/careline/internal/platform/llm"
)

const maxMessageLength = 2000

const basePrompt = `You are the Careline patient assistant. You help patients book, reschedule and cancel appointments and understand their prescriptions.
Answer briefly and in plain language. You cannot change appointments yourself: explain which screen or action the patient should use.
Never give a diagnosis. For urgent symptoms tell the patient to call emergency services.`

// AppointmentLister returns a caller's pending and confirmed appointments.
type AppointmentLister interface {
	Upcoming(ctx context.Context, ref string) ([]*appointment.Appointment, error)
}

type Service struct {
	llm          llm.Client
	history      HistoryStore
	appointments AppointmentLister
	logger       zerolog.Logger
}

func NewService(client llm.Client, history HistoryStore, appointments AppointmentLister, logger zerolog.Logger) *Service {
	return &Service{
		llm:          client,
		history:      history,
		appointments: appointments,
		logger:       logger.With().Str("component", "assistant").Logger(),
	}
}

// Reply is the answer to one chat message.
type Reply struct {
	ConversationID string `json:"conversationId"`
	Reply          string `json:"reply"`
	Fallback       bool   `json:"fallback"`
}

// Chat answers message within the caller's conversation. An empty
// conversationID starts a new one. When the model is unavailable a canned
// reply is returned with Fallback set.
func (s *Service) Chat(ctx context.Context, externalID, conversationID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return nil, apperr.Validation("message must be at most %d characters", maxMessageLength)
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	key := conversationKey(externalID, conversationID)
	log := s.logger.With().Str("conversation_id", conversationID).Logger()

	history, err := s.history.Load(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("load conversation history")
		history = []llm.Message{}
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s.systemPrompt(ctx, externalID)})
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	reply := &Reply{ConversationID: conversationID}
	answer, err := s.llm.Complete(ctx, "chat", msgs)
	if err != nil {
		log.Warn().Err(err).Msg("assistant completion failed, using canned reply")
		answer = CannedReply(message)
		reply.Fallback = true
	}
	reply.Reply = answer

	history = append(history,
		llm.Message{Role: llm.RoleUser, Content: message},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	if err := s.history.Save(ctx, key, history); err != nil {
		log.Warn().Err(err).Msg("save conversation history")
	}
	return reply, nil
}

func (s *Service) systemPrompt(ctx context.Context, externalID string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	upcoming, err := s.appointments.Upcoming(ctx, externalID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load upcoming appointments for prompt")
		return b.String()
	}
	if len(upcoming) == 0 {
		b.WriteString("\n\nThe patient has no upcoming appointments.")
		return b.String()
	}
	b.WriteString("\n\nThe patient's upcoming appointments:")
	for _, a := range upcoming {
		fmt.Fprintf(&b, "\n- %s at %s with %s (%s): %s",
			a.AppointmentDate.Format("Monday, January 2, 2006"), a.AppointmentTime, a.DoctorName, a.Status, a.Reason)
	}
	return b.String()
}

// CannedReply picks a fixed answer by keyword.
func CannedReply(message string) string {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "reschedul"):
		return "To reschedule, open the appointment in your list and choose a new date and time. " +
			"Cancelled and completed appointments cannot be moved."
	case strings.Contains(m, "cancel"):
		return "You can cancel a pending or confirmed appointment from your appointment list. " +
			"Adding a short reason helps your doctor."
	case strings.Contains(m, "book"):
		return "To book an appointment, fill in the appointment form with your details, " +
			"preferred doctor, date and time. It starts as pending until the clinic confirms it."
	case strings.Contains(m, "prescription"):
		return "You can upload prescriptions as PDF, image or text files from the prescriptions page " +
			"and request a plain-language summary there."
	default:
		return "I'm having trouble answering right now. You can book, reschedule or cancel appointments " +
			"from your dashboard, or contact the clinic directly."
	}
}
