package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Service sends requester-facing notifications for deployment lifecycle
// changes. Every method tolerates a missing sender or missing requester
// email; notifications are best-effort and never block the pipeline.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// NotifyDecision tells the requester their request was approved or rejected.
func (s *Service) NotifyDecision(ctx context.Context, req *deployment.Request) error {
	if s == nil || s.email == nil || req == nil || req.RequesterEmail == "" {
		return nil
	}

	var subject, verdict string
	switch req.Status {
	case deployment.StatusApproved:
		subject = fmt.Sprintf("Deployment request for %s approved", req.ResourceName)
		verdict = fmt.Sprintf("approved by %s and queued for execution", req.ApprovedBy)
	case deployment.StatusRejected:
		subject = fmt.Sprintf("Deployment request for %s rejected", req.ResourceName)
		verdict = fmt.Sprintf("rejected by %s", req.RejectedBy)
	default:
		return nil
	}

	body := fmt.Sprintf("Hi %s,\n\nYour request %s (%s %q) was %s.\n",
		requesterName(req), req.RequestID, req.ResourceType, req.ResourceName, verdict)
	return s.send(ctx, req, subject, body)
}

// NotifyOutcome tells the requester how the execution finished.
func (s *Service) NotifyOutcome(ctx context.Context, req *deployment.Request) error {
	if s == nil || s.email == nil || req == nil || req.RequesterEmail == "" {
		return nil
	}
	if req.Result == nil {
		return nil
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Hi %s,", requesterName(req)))
	lines = append(lines, "")
	switch req.Status {
	case deployment.StatusCompleted:
		if req.Result.Partial {
			lines = append(lines, fmt.Sprintf("Your deployment of %q finished, but the resource could not be confirmed afterwards. Please verify it manually.", req.ResourceName))
		} else {
			lines = append(lines, fmt.Sprintf("Your deployment of %q completed successfully.", req.ResourceName))
		}
	case deployment.StatusFailed:
		lines = append(lines, fmt.Sprintf("Your deployment of %q failed.", req.ResourceName))
		if req.Result.Error != "" {
			lines = append(lines, "", "Details: "+req.Result.Error)
		}
	default:
		return nil
	}

	subject := fmt.Sprintf("Deployment of %s: %s", req.ResourceName, req.Status)
	return s.send(ctx, req, subject, strings.Join(lines, "\n")+"\n")
}

func (s *Service) send(ctx context.Context, req *deployment.Request, subject, body string) error {
	err := s.email.Send(ctx, EmailMessage{
		To:      req.RequesterEmail,
		ToName:  req.RequesterName,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logger.Error("requester notification failed",
			"request_id", req.RequestID,
			"error", err,
		)
		return err
	}
	return nil
}

func requesterName(req *deployment.Request) string {
	if req.RequesterName != "" {
		return req.RequesterName
	}
	return "there"
}
