package worker

// report_worker.go
// Prints the takings summary of a session to PDF and mails it to the
// site's report address.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// SummaryPrinter prints a session summary on its configured printer.
type SummaryPrinter interface {
	PrintSummary(ctx context.Context, id int64) error
}

// Printout exposes the file produced by the most recent print job.
type Printout interface {
	LastFile() string
}

// ReportMailer sends a message with an attachment.
type ReportMailer interface {
	Configured() bool
	Send(to, subject, body, attachment string) error
}

// ReportWorker processes QueueTakingsReport jobs.
type ReportWorker struct {
	summaries SummaryPrinter
	printout  Printout
	mailer    ReportMailer
	to        string
	siteName  string
	failed    *FailedJobs

	mu sync.Mutex // one print-and-mail at a time so LastFile is ours
}

func NewReportWorker(summaries SummaryPrinter, printout Printout, mailer ReportMailer, to, siteName string) *ReportWorker {
	return &ReportWorker{summaries: summaries, printout: printout, mailer: mailer, to: to, siteName: siteName,
		failed: NewFailedJobs(nil)}
}

// KeepFailures records reports that could not be printed or mailed in f.
func (w *ReportWorker) KeepFailures(f *FailedJobs) {
	w.failed = f
}

func (w *ReportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload SessionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == 0 {
		log.Error().Err(err).Str("payload", string(raw)).Msg("report_worker: invalid payload")
		return
	}
	if w.to == "" || !w.mailer.Configured() {
		log.Debug().Int64("session_id", payload.SessionID).Msg("report_worker: no report address or mail server, skipping")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.summaries.PrintSummary(ctx, payload.SessionID); err != nil {
		log.Error().Err(err).Int64("session_id", payload.SessionID).Msg("report_worker: summary not printed")
		w.failed.File(ctx, QueueTakingsReport, JobTakingsReport, raw, "summary not printed: "+err.Error(), 1)
		return
	}
	path := w.printout.LastFile()

	subject := fmt.Sprintf("Takings for session %d", payload.SessionID)
	if w.siteName != "" {
		subject = w.siteName + ": " + subject
	}
	body := fmt.Sprintf("The takings summary for session %d is attached.\n", payload.SessionID)
	if err := w.mailer.Send(w.to, subject, body, path); err != nil {
		log.Error().Err(err).Str("to", w.to).Int64("session_id", payload.SessionID).Msg("report_worker: failed to send report")
		w.failed.File(ctx, QueueTakingsReport, JobTakingsReport, raw, "mail not sent: "+err.Error(), 1)
		return
	}
	log.Info().Str("to", w.to).Int64("session_id", payload.SessionID).Msg("report_worker: takings report sent")
}
