package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// ReportMailer emails maintenance reports to program operators via
// Amazon SES
type ReportMailer struct {
	client     *sesv2.Client
	fromEmail  string
	fromName   string
	recipients []string
	enabled    bool
	logger     *zap.Logger
}

// NewReportMailer creates a new report mailer. With no from address or
// no recipients configured the mailer is disabled and every send is a
// logged no-op.
func NewReportMailer(awsRegion, fromEmail, fromName string, recipients []string, logger *zap.Logger) (*ReportMailer, error) {
	if fromEmail == "" || len(recipients) == 0 {
		logger.Info("report mailer disabled: SES_FROM_EMAIL or REPORT_RECIPIENTS not configured")
		return &ReportMailer{enabled: false, logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("report mailer enabled",
		zap.String("from", fromEmail),
		zap.String("region", awsRegion),
		zap.Int("recipients", len(recipients)))

	return &ReportMailer{
		client:     sesv2.NewFromConfig(cfg),
		fromEmail:  fromEmail,
		fromName:   fromName,
		recipients: recipients,
		enabled:    true,
		logger:     logger,
	}, nil
}

// IsEnabled returns whether the mailer is enabled
func (m *ReportMailer) IsEnabled() bool {
	return m.enabled
}

// SendScanReport mails a summary of a family health scan
func (m *ReportMailer) SendScanReport(ctx context.Context, report *ScanReport) error {
	subject := fmt.Sprintf("Family health scan: %d of %d families with issues",
		report.FamiliesWithIssues, report.FamiliesScanned)
	if report.Healthy {
		subject = fmt.Sprintf("Family health scan: all %d families healthy", report.FamiliesScanned)
	}

	var counts strings.Builder
	for issueType, n := range report.IssueCounts {
		fmt.Fprintf(&counts, "- %s: %d\n", issueType, n)
	}
	if counts.Len() == 0 {
		counts.WriteString("- none\n")
	}

	textBody := fmt.Sprintf(`Family battle health scan %s

Scanned at: %s
Families scanned: %d
Families with issues: %d
Unit errors: %d

Issue counts:
%s
---
This is an automated report. Please do not reply.
`, report.ScanID, report.ScannedAt.Format("2006-01-02 15:04:05 MST"),
		report.FamiliesScanned, report.FamiliesWithIssues, len(report.Errors), counts.String())

	return m.send(ctx, subject, textBody)
}

// SendRolloverReport mails a summary of an academic-year rollover
func (m *ReportMailer) SendRolloverReport(ctx context.Context, report *RolloverReport) error {
	subject := fmt.Sprintf("Academic year rollover: %s -> %s", report.OldYear, report.NewYear)

	var failures strings.Builder
	for _, unitErr := range report.Errors {
		fmt.Fprintf(&failures, "- %s: %s\n", unitErr.Key, unitErr.Message)
	}
	if failures.Len() == 0 {
		failures.WriteString("- none\n")
	}

	textBody := fmt.Sprintf(`Academic year rollover complete.

Old year: %s
New year: %s
Students cleared: %d
Failures: %d

Failed units:
%s
---
This is an automated report. Please do not reply.
`, report.OldYear, report.NewYear, report.StudentsCleared, report.Failed, failures.String())

	return m.send(ctx, subject, textBody)
}

// send delivers one plain-text report to every configured recipient
func (m *ReportMailer) send(ctx context.Context, subject, textBody string) error {
	if !m.enabled {
		m.logger.Info("skipping report email (mailer disabled)", zap.String("subject", subject))
		return nil
	}

	fromAddress := m.fromEmail
	if m.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: m.recipients,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send report email: %w", err)
	}

	m.logger.Info("report email sent",
		zap.String("subject", subject),
		zap.Int("recipients", len(m.recipients)))
	return nil
}
