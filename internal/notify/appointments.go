package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AppointmentNotice carries what the booking emails render.
type AppointmentNotice struct {
	PatientEmail string
	PatientName  string
	DoctorName   string
	Date         time.Time
	Start        string
	End          string
	Reason       string
}

// AppointmentNotifier sends booking lifecycle emails. Failures are logged
// and never surface to the caller.
type AppointmentNotifier struct {
	sender EmailSender
	logger *zap.Logger
}

func NewAppointmentNotifier(sender EmailSender, logger *zap.Logger) *AppointmentNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentNotifier{sender: sender, logger: logger}
}

func (n *AppointmentNotifier) Booked(ctx context.Context, a AppointmentNotice) {
	n.send(ctx, a, BookingConfirmation(a))
}

func (n *AppointmentNotifier) Cancelled(ctx context.Context, a AppointmentNotice) {
	n.send(ctx, a, CancellationNotice(a))
}

func (n *AppointmentNotifier) send(ctx context.Context, a AppointmentNotice, msg EmailMessage) {
	if n == nil || n.sender == nil || a.PatientEmail == "" {
		return
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Warn("appointment email failed", zap.String("to", a.PatientEmail), zap.Error(err))
	}
}

// BookingConfirmation renders the email sent after a successful booking.
func BookingConfirmation(a AppointmentNotice) EmailMessage {
	return EmailMessage{
		To:      a.PatientEmail,
		ToName:  a.PatientName,
		Subject: "Appointment confirmed",
		Body: fmt.Sprintf("Hello %s,\n\nYour appointment with Dr. %s is booked for %s, %s-%s.\nReason: %s\n",
			a.PatientName, a.DoctorName, a.Date.Format("Monday, 2 January 2006"), a.Start, a.End, a.Reason),
	}
}

// CancellationNotice renders the email sent after a cancellation.
func CancellationNotice(a AppointmentNotice) EmailMessage {
	return EmailMessage{
		To:      a.PatientEmail,
		ToName:  a.PatientName,
		Subject: "Appointment cancelled",
		Body: fmt.Sprintf("Hello %s,\n\nYour appointment with Dr. %s on %s at %s has been cancelled.\n",
			a.PatientName, a.DoctorName, a.Date.Format("Monday, 2 January 2006"), a.Start),
	}
}
