package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cultivarhq/go-moderation-backend/internal/domain"
)

func newReportService(t *testing.T) *ReportService {
	t.Helper()
	db := newTestDB(t)
	return NewReportService(db, newTestLedger(t, db), testSLACfg(), testModCfg())
}

func validSubmit() SubmitReportInput {
	return SubmitReportInput{
		ContentID:      "post-1",
		ContentType:    domain.ContentTypePost,
		ContentLocator: "https://example.test/p/1",
		ReporterID:     "u1",
		ReportType:     domain.ReportTypePolicyViolation,
		Explanation:    "spam wall",
		GoodFaith:      true,
	}
}

func TestReport_Submit_Valid(t *testing.T) {
	svc := newReportService(t)
	before := time.Now().UTC()

	res, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Duplicate {
		t.Fatal("first notice flagged duplicate")
	}
	r := res.Report
	if r.Status != domain.ReportStatusPending {
		t.Fatalf("status = %q", r.Status)
	}
	if r.Priority != 50 {
		t.Fatalf("priority = %d, want base 50", r.Priority)
	}

	// 72h policy window.
	want := before.Add(72 * time.Hour)
	if d := r.SLADeadline.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("sla deadline %v, want about %v", r.SLADeadline, want)
	}
	if r.SnapshotID == nil {
		t.Fatal("no content snapshot captured")
	}
}

func TestReport_Submit_Validation(t *testing.T) {
	svc := newReportService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SubmitReportInput)
		want   error
	}{
		{"missing explanation", func(in *SubmitReportInput) { in.Explanation = "  " }, ErrMissingExplanation},
		{"missing good faith", func(in *SubmitReportInput) { in.GoodFaith = false }, ErrMissingGoodFaith},
		{"bad report type", func(in *SubmitReportInput) { in.ReportType = "gossip" }, ErrInvalidReportType},
		{"bad content type", func(in *SubmitReportInput) { in.ContentType = "hologram" }, ErrInvalidContentType},
		{"illegal without jurisdiction", func(in *SubmitReportInput) {
			in.ReportType = domain.ReportTypeIllegal
			in.LegalReference = "x"
		}, ErrMissingJurisdiction},
		{"illegal without legal reference", func(in *SubmitReportInput) {
			in.ReportType = domain.ReportTypeIllegal
			in.Jurisdiction = "DE"
		}, ErrMissingLegalReference},
		{"bad jurisdiction", func(in *SubmitReportInput) {
			in.ReportType = domain.ReportTypeIllegal
			in.Jurisdiction = "XX1"
			in.LegalReference = "x"
		}, ErrInvalidRegion},
	}
	for _, tc := range cases {
		in := validSubmit()
		tc.mutate(&in)
		if _, err := svc.Submit(ctx, in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestReport_Submit_IllegalTrustedPriorityAndWindow(t *testing.T) {
	svc := newReportService(t)
	before := time.Now().UTC()

	in := validSubmit()
	in.ReportType = domain.ReportTypeIllegal
	in.Jurisdiction = "de" // normalized upward
	in.LegalReference = "StGB 130"
	in.TrustedFlagger = true

	res, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	r := res.Report

	// trusted base 70 + illegal boost 20
	if r.Priority != 90 {
		t.Fatalf("priority = %d, want 90", r.Priority)
	}
	if r.Jurisdiction != "DE" {
		t.Fatalf("jurisdiction = %q, want DE", r.Jurisdiction)
	}

	// 24h illegal window halved for trusted flaggers.
	want := before.Add(12 * time.Hour)
	if d := r.SLADeadline.Sub(want); d < -time.Minute || d > time.Minute {
		t.Fatalf("sla deadline %v, want about %v", r.SLADeadline, want)
	}
}

func TestReport_Submit_DuplicateCollapses(t *testing.T) {
	svc := newReportService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.Submit(ctx, validSubmit())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("repeat notice not flagged duplicate")
	}
	r := second.Report
	if r.Status != domain.ReportStatusDuplicate {
		t.Fatalf("status = %q", r.Status)
	}
	if r.DuplicateOfID == nil || *r.DuplicateOfID != first.Report.ID {
		t.Fatalf("duplicate_of = %v, want %s", r.DuplicateOfID, first.Report.ID)
	}
	// The duplicate inherits the original's clock, not a fresh one.
	if !r.SLADeadline.Equal(first.Report.SLADeadline) {
		t.Fatalf("duplicate deadline %v differs from original %v", r.SLADeadline, first.Report.SLADeadline)
	}

	// A different reporter against the same content is NOT a duplicate.
	other := validSubmit()
	other.ReporterID = "u2"
	res, err := svc.Submit(ctx, other)
	if err != nil {
		t.Fatalf("other reporter: %v", err)
	}
	if res.Duplicate {
		t.Fatal("different reporter collapsed as duplicate")
	}
}

func TestReport_Submit_SnapshotReused(t *testing.T) {
	svc := newReportService(t)
	ctx := context.Background()

	in := validSubmit()
	in.ContentPayload = []byte("offending text")
	first, err := svc.Submit(ctx, in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	in.ReporterID = "u2" // avoid the duplicate path
	second, err := svc.Submit(ctx, in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if *first.Report.SnapshotID != *second.Report.SnapshotID {
		t.Fatal("recent snapshot not reused for identical content")
	}
}

func TestReport_Submit_WritesAuditTrail(t *testing.T) {
	db := newTestDB(t)
	ledger := newTestLedger(t, db)
	svc := NewReportService(db, ledger, testSLACfg(), testModCfg())

	in := validSubmit()
	in.ReporterContact = "reporter@example.test"
	res, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	trail, err := ledger.TargetHistory(context.Background(), "content_report", res.Report.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(trail) != 1 || trail[0].EventType != EventReportSubmitted {
		t.Fatalf("trail = %+v", trail)
	}
	if !trail[0].PIITagged {
		t.Fatal("intake event with reporter contact must be PII tagged")
	}
}

func TestReport_Queue_DeadlineOrder(t *testing.T) {
	svc := newReportService(t)
	ctx := context.Background()

	low, _ := svc.Submit(ctx, validSubmit())

	urgent := validSubmit()
	urgent.ContentID = "post-2"
	urgent.ReporterID = "u2"
	urgent.ReportType = domain.ReportTypeIllegal
	urgent.Jurisdiction = "FR"
	urgent.LegalReference = "LCEN 6"
	urgent.TrustedFlagger = true
	high, err := svc.Submit(ctx, urgent)
	if err != nil {
		t.Fatalf("urgent: %v", err)
	}

	q, err := svc.Queue(ctx, 10)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(q) != 2 {
		t.Fatalf("queue length = %d", len(q))
	}
	// The 24h illegal window (halved for the trusted flagger) beats the 72h
	// policy window.
	if q[0].ID != high.Report.ID || q[1].ID != low.Report.ID {
		t.Fatalf("queue order = [%s %s]", q[0].ID, q[1].ID)
	}
}

func TestReport_Get_NotFound(t *testing.T) {
	svc := newReportService(t)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
