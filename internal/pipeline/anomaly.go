package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dvloznov/bankflow/internal/completion"
	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/domain"
)

// Rule thresholds and confidences.
const (
	highAmountThreshold = 1_000_000.0

	negativeBalanceConfidence = 0.95
	highAmountConfidence      = 0.80
	zeroAmountConfidence      = 0.70
	statusMismatchConfidence  = 0.90

	// Default sampling parameters for the model pass.
	DefaultSampleSize = 100
	DefaultSampleSeed = 42

	// DefaultConfidenceThreshold is the minimum model confidence for an
	// anomaly to be accepted.
	DefaultConfidenceThreshold = 0.75

	modelMaxTokens   = 500
	modelTemperature = 0.3
)

// requiredFields are the columns whose null cells make a row critically
// incomplete.
var requiredFields = []string{
	domain.ColTransactionID,
	domain.ColCustomerID,
	domain.ColAmount,
	domain.ColStatus,
}

// Detector combines a deterministic rule scan with sampled model-based
// classification. The two passes are independent; their findings merge into
// one list.
type Detector struct {
	service             completion.Service
	confidenceThreshold float64
	sampleSize          int
	sampleSeed          int64
	log                 zerolog.Logger
}

// NewDetector creates a detector. service may be nil, which disables the
// model pass (rules still run).
func NewDetector(service completion.Service, threshold float64, sampleSize int, seed int64, log zerolog.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Detector{
		service:             service,
		confidenceThreshold: threshold,
		sampleSize:          sampleSize,
		sampleSeed:          seed,
		log:                 log,
	}
}

// Detect runs both passes, marks flagged rows with is_anomaly and returns
// the merged anomaly list. Completion-service failures cost only the
// affected rows, never the stage.
func (d *Detector) Detect(ctx context.Context, ds *dataset.Dataset) (AnomalyMetrics, []domain.Anomaly) {
	ds.AddColumn(domain.ColIsAnomaly, false)

	anomalies := d.ruleScan(ds)
	ruleCount := len(anomalies)

	modelFindings := d.modelScan(ctx, ds)
	anomalies = append(anomalies, modelFindings...)

	for _, a := range anomalies {
		_ = ds.Set(a.RowIndex, domain.ColIsAnomaly, true)
	}

	rate := 0.0
	if ds.Len() > 0 {
		rate = round2(float64(len(anomalies)) / float64(ds.Len()) * 100)
	}

	metrics := AnomalyMetrics{
		TotalRows:         ds.Len(),
		AnomaliesDetected: len(anomalies),
		AnomalyRate:       rate,
		RuleBasedCount:    ruleCount,
		ModelBasedCount:   len(modelFindings),
	}
	return metrics, anomalies
}

// ruleScan applies the deterministic rules to every row. A row can trigger
// several rules and produce several entries.
func (d *Detector) ruleScan(ds *dataset.Dataset) []domain.Anomaly {
	var found []domain.Anomaly

	for i := 0; i < ds.Len(); i++ {
		txnID, _ := dataset.AsString(ds.Get(i, domain.ColTransactionID))
		status, _ := dataset.AsString(ds.Get(i, domain.ColStatus))
		status = strings.ToLower(status)

		balance, hasBalance := dataset.AsFloat(ds.Get(i, domain.ColBalance))
		amount, hasAmount := dataset.AsFloat(ds.Get(i, domain.ColAmount))

		if hasBalance && balance < 0 && status == "completed" {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalyNegativeBalance,
				Severity:      domain.SeverityHigh,
				Confidence:    negativeBalanceConfidence,
				DetectedBy:    domain.DetectedByRules,
				Description:   "negative balance with completed transaction status",
				FieldName:     domain.ColBalance,
				OriginalValue: fmt.Sprintf("%v", balance),
			})
		}

		if hasAmount && amount > highAmountThreshold {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalySuspiciousAmount,
				Severity:      domain.SeverityMedium,
				Confidence:    highAmountConfidence,
				DetectedBy:    domain.DetectedByRules,
				Description:   fmt.Sprintf("unusually high transaction amount: $%.2f", amount),
				FieldName:     domain.ColAmount,
				OriginalValue: fmt.Sprintf("%v", amount),
			})
		} else if hasAmount && amount == 0 {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalySuspiciousAmount,
				Severity:      domain.SeverityLow,
				Confidence:    zeroAmountConfidence,
				DetectedBy:    domain.DetectedByRules,
				Description:   "zero amount transaction",
				FieldName:     domain.ColAmount,
				OriginalValue: "0",
			})
		}

		if status == "failed" && hasAmount && amount != 0 && hasBalance && balance != amount {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalyStatusMismatch,
				Severity:      domain.SeverityHigh,
				Confidence:    statusMismatchConfidence,
				DetectedBy:    domain.DetectedByRules,
				Description:   "failed transaction with balance change",
				FieldName:     domain.ColStatus,
				OriginalValue: status,
			})
		}

		if dup, ok := dataset.AsBool(ds.Get(i, domain.ColIsDuplicate)); ok && dup {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalyDuplicateTransaction,
				Severity:      domain.SeverityMedium,
				Confidence:    1.0,
				DetectedBy:    domain.DetectedByRules,
				Description:   "duplicate transaction ID found",
				FieldName:     domain.ColTransactionID,
				OriginalValue: txnID,
			})
		}

		var missing []string
		for _, f := range requiredFields {
			if dataset.IsNull(ds.Get(i, f)) {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			found = append(found, domain.Anomaly{
				RowIndex:      i,
				TransactionID: txnID,
				Type:          domain.AnomalyMissingRequiredField,
				Severity:      domain.SeverityCritical,
				Confidence:    1.0,
				DetectedBy:    domain.DetectedByRules,
				Description:   "missing required fields: " + strings.Join(missing, ", "),
				FieldName:     "multiple",
				OriginalValue: strings.Join(missing, ","),
			})
		}
	}

	return found
}

// modelScan classifies a fixed-size sample of rows through the completion
// service. All calls run concurrently; a failed call yields no anomaly for
// that row.
func (d *Detector) modelScan(ctx context.Context, ds *dataset.Dataset) []domain.Anomaly {
	if d.service == nil || ds.Len() == 0 {
		return nil
	}

	indices := sampleIndices(ds.Len(), d.sampleSize, d.sampleSeed)

	results := make([]*domain.Anomaly, len(indices))
	var wg sync.WaitGroup
	for pos, rowIdx := range indices {
		wg.Add(1)
		go func(pos, rowIdx int) {
			defer wg.Done()
			results[pos] = d.classifyRow(ctx, ds.Row(rowIdx), rowIdx)
		}(pos, rowIdx)
	}
	wg.Wait()

	var found []domain.Anomaly
	for _, r := range results {
		if r != nil {
			found = append(found, *r)
		}
	}
	return found
}

// sampleIndices draws min(size, n) distinct row indices using a seeded PRNG
// so the sample is reproducible across runs.
func sampleIndices(n, size int, seed int64) []int {
	if size > n {
		size = n
	}
	rng := rand.New(rand.NewSource(seed))
	indices := rng.Perm(n)[:size]
	sort.Ints(indices)
	return indices
}

func (d *Detector) classifyRow(ctx context.Context, row dataset.Row, rowIdx int) *domain.Anomaly {
	prompt := buildAnomalyPrompt(row)

	response, err := d.service.Generate(ctx, prompt,
		completion.WithMaxTokens(modelMaxTokens),
		completion.WithTemperature(modelTemperature),
	)
	if err != nil {
		d.log.Warn().Err(err).Int("row_index", rowIdx).Msg("model classification failed; skipping row")
		return nil
	}

	verdict := ParseVerdict(response)
	if !verdict.IsAnomaly || verdict.Confidence < d.confidenceThreshold {
		return nil
	}

	txnID, _ := dataset.AsString(row[domain.ColTransactionID])
	return &domain.Anomaly{
		RowIndex:      rowIdx,
		TransactionID: txnID,
		Type:          verdict.Type,
		Severity:      verdict.Severity,
		Confidence:    verdict.Confidence,
		DetectedBy:    domain.DetectedByModel,
		Description:   verdict.Explanation,
		Explanation:   verdict.Explanation,
	}
}
