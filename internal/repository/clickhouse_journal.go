package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"Agora/internal/domain/models"
	domrepo "Agora/internal/domain/repository"
	pkgch "Agora/pkg/clickhouse"
	applogger "Agora/pkg/logger"
)

// ClickHouseDecisionJournal appends council decisions and risk reviews to
// MergeTree tables. Inserts rely on server side async_insert for batching.
type ClickHouseDecisionJournal struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

var _ domrepo.DecisionJournal = (*ClickHouseDecisionJournal)(nil)

// NewClickHouseDecisionJournal creates a journal on the client's database.
func NewClickHouseDecisionJournal(ch *pkgch.Client, l *applogger.Logger) *ClickHouseDecisionJournal {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseDecisionJournal{client: ch, db: ch.DB(), l: l}
}

func (j *ClickHouseDecisionJournal) councilTable() string {
	return j.client.Database() + ".council_decisions"
}

func (j *ClickHouseDecisionJournal) reviewTable() string {
	return j.client.Database() + ".risk_reviews"
}

// SchemaStatements is the idempotent DDL for the journal tables.
func SchemaStatements(database string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		`CREATE TABLE IF NOT EXISTS ` + database + `.council_decisions (
			produced_at    DateTime64(3, 'UTC'),
			instrument     LowCardinality(String),
			verdict        LowCardinality(String),
			consensus_pct  UInt8,
			buy            UInt32,
			sell           UInt32,
			hold           UInt32,
			bucket_scores  String,
			opinions       String,
			weights        String,
			narrative      String,
			severity       LowCardinality(String),
			conflict_type  LowCardinality(String),
			opportunity    LowCardinality(String),
			variance_score UInt8,
			action_hint    String
		) ENGINE = MergeTree ORDER BY (instrument, produced_at)`,
		`CREATE TABLE IF NOT EXISTS ` + database + `.risk_reviews (
			reviewed_at       DateTime64(3, 'UTC'),
			instrument        LowCardinality(String),
			approved          UInt8,
			code              LowCardinality(String),
			reason            String,
			adjusted_quantity Int64,
			stop_loss         Float64,
			take_profit       Float64,
			risk_r            Float64,
			risk_amount       Float64,
			sizing_method     LowCardinality(String),
			warnings          Array(String)
		) ENGINE = MergeTree ORDER BY (instrument, reviewed_at)`,
	}
}

func (j *ClickHouseDecisionJournal) Init(ctx context.Context) error {
	return j.client.InitSchema(ctx, SchemaStatements(j.client.Database()))
}

func (j *ClickHouseDecisionJournal) AppendCouncil(ctx context.Context, d *models.CouncilDecision, c *models.ConflictAnalysis) error {
	row, err := councilRow(d, c)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (produced_at, instrument, verdict, consensus_pct, buy, sell, hold,
		bucket_scores, opinions, weights, narrative, severity, conflict_type, opportunity, variance_score, action_hint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.councilTable())
	if err := j.client.InsertBatch(ctx, q, [][]interface{}{row}); err != nil {
		j.l.Error("clickhouse append council error",
			applogger.String("instrument", d.Instrument),
			applogger.Error(err),
		)
		return fmt.Errorf("append council decision: %w", err)
	}
	return nil
}

func (j *ClickHouseDecisionJournal) AppendRisk(ctx context.Context, d *models.RiskDecision) error {
	q := fmt.Sprintf(`INSERT INTO %s (reviewed_at, instrument, approved, code, reason, adjusted_quantity,
		stop_loss, take_profit, risk_r, risk_amount, sizing_method, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.reviewTable())
	if err := j.client.InsertBatch(ctx, q, [][]interface{}{reviewRow(d)}); err != nil {
		j.l.Error("clickhouse append review error",
			applogger.String("instrument", d.Instrument),
			applogger.Error(err),
		)
		return fmt.Errorf("append risk decision: %w", err)
	}
	return nil
}

// RecentCouncil returns the newest decisions for an instrument, newest first.
func (j *ClickHouseDecisionJournal) RecentCouncil(ctx context.Context, instrument string, since time.Time, limit int) ([]*models.CouncilDecision, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT produced_at, instrument, verdict, consensus_pct, buy, sell, hold,
		bucket_scores, opinions, weights, narrative
		FROM %s
		WHERE instrument = ? AND produced_at >= ?
		ORDER BY produced_at DESC
		LIMIT ?`, j.councilTable())
	rows, err := j.db.QueryContext(ctx, q, instrument, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query council decisions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.CouncilDecision, 0, limit)
	for rows.Next() {
		var (
			r       councilRecord
			pct     uint8
			verdict string
		)
		if err := rows.Scan(&r.ProducedAt, &r.Instrument, &verdict, &pct, &r.Buy, &r.Sell, &r.Hold,
			&r.BucketScores, &r.Opinions, &r.Weights, &r.Narrative); err != nil {
			return nil, fmt.Errorf("scan council decision: %w", err)
		}
		r.Verdict = verdict
		r.ConsensusPct = int(pct)
		d, err := r.decision()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	j.l.Debug("clickhouse recent council ok",
		applogger.String("instrument", instrument),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (j *ClickHouseDecisionJournal) Health(ctx context.Context) error { return j.client.Health(ctx) }

func (j *ClickHouseDecisionJournal) Close() error { return j.client.Close() }

// councilRecord is the flattened row form of a council decision.
type councilRecord struct {
	ProducedAt   time.Time
	Instrument   string
	Verdict      string
	ConsensusPct int
	Buy          uint32
	Sell         uint32
	Hold         uint32
	BucketScores string
	Opinions     string
	Weights      string
	Narrative    string
}

func (r councilRecord) decision() (*models.CouncilDecision, error) {
	verdict, err := models.ParseVote(r.Verdict)
	if err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	d := &models.CouncilDecision{
		Instrument:   r.Instrument,
		Verdict:      verdict,
		ConsensusPct: r.ConsensusPct,
		Tally:        models.Tally{Buy: r.Buy, Sell: r.Sell, Hold: r.Hold},
		Narrative:    r.Narrative,
		ProducedAt:   r.ProducedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.BucketScores), &d.BucketScores); err != nil {
		return nil, fmt.Errorf("decode bucket scores: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Opinions), &d.Opinions); err != nil {
		return nil, fmt.Errorf("decode opinions: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Weights), &d.Weights); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	return d, nil
}

func councilRow(d *models.CouncilDecision, c *models.ConflictAnalysis) ([]interface{}, error) {
	buckets, err := json.Marshal(d.BucketScores)
	if err != nil {
		return nil, fmt.Errorf("encode bucket scores: %w", err)
	}
	opinions, err := json.Marshal(d.Opinions)
	if err != nil {
		return nil, fmt.Errorf("encode opinions: %w", err)
	}
	weights, err := json.Marshal(d.Weights)
	if err != nil {
		return nil, fmt.Errorf("encode weights: %w", err)
	}
	if c == nil {
		c = &models.ConflictAnalysis{NoData: true, Severity: models.SeverityNone, ConflictType: models.ConflictNone, Opportunity: models.OpportunityNone}
	}
	return []interface{}{
		d.ProducedAt.UTC(),
		d.Instrument,
		d.Verdict.String(),
		uint8(d.ConsensusPct),
		d.Tally.Buy,
		d.Tally.Sell,
		d.Tally.Hold,
		string(buckets),
		string(opinions),
		string(weights),
		d.Narrative,
		c.Severity.String(),
		c.ConflictType.String(),
		c.Opportunity.String(),
		uint8(c.VarianceScore),
		c.ActionHint,
	}, nil
}

func reviewRow(d *models.RiskDecision) []interface{} {
	var approved uint8
	if d.Approved {
		approved = 1
	}
	warnings := d.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return []interface{}{
		d.ReviewedAt.UTC(),
		d.Instrument,
		approved,
		d.Code.String(),
		d.Reason,
		d.AdjustedQuantity,
		d.SuggestedStopLoss,
		d.SuggestedTakeProfit,
		d.RiskR,
		d.RiskAmount,
		d.SizingMethod.String(),
		warnings,
	}
}
