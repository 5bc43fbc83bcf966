// internal/services/ledger_audit_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/estatechain/ledger-backend/internal/accounting"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/models"
)

type FindingKind string

const (
	FindingSupplyExceeded    FindingKind = "SUPPLY_EXCEEDED"
	FindingCounterDrift      FindingKind = "COUNTER_DRIFT"
	FindingOverReserved      FindingKind = "OVER_RESERVED"
	FindingMissingSettlement FindingKind = "MISSING_SETTLEMENT"
	FindingRevertedSettle    FindingKind = "REVERTED_SETTLEMENT"
)

type AuditFinding struct {
	Kind       FindingKind `json:"kind"`
	PropertyID uuid.UUID   `json:"property_id"`
	UserID     string      `json:"user_id,omitempty"`
	Reference  string      `json:"reference,omitempty"`
	Detail     string      `json:"detail"`
	Repaired   bool        `json:"repaired"`
}

type AuditReport struct {
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	PropertiesChecked int            `json:"properties_checked"`
	Findings          []AuditFinding `json:"findings"`
	Repaired          int            `json:"repaired"`
	ArchiveLocation   string         `json:"archive_location,omitempty"`
}

// Healthy reports whether the audit found nothing.
func (r *AuditReport) Healthy() bool { return len(r.Findings) == 0 }

// ReportArchive stores audit reports outside the database.
type ReportArchive interface {
	Archive(ctx context.Context, key string, body []byte) (string, error)
}

// LedgerAuditService recomputes the ledger's invariants from its rows and
// reports every violation. The only repair it performs is rewriting the
// denormalized available-token counter; balances are never touched.
type LedgerAuditService struct {
	db      *gorm.DB
	archive ReportArchive
}

func NewLedgerAuditService(db *gorm.DB, archive ReportArchive) *LedgerAuditService {
	return &LedgerAuditService{db: db, archive: archive}
}

type propertySupply struct {
	ID              uuid.UUID
	Status          models.PropertyStatus
	TotalTokens     int64
	AvailableTokens int64
	Issued          int64
}

type reservation struct {
	PropertyID uuid.UUID
	UserID     string
	Held       int64
	Reserved   int64
}

func (s *LedgerAuditService) Run(ctx context.Context, repair bool) (*AuditReport, error) {
	report := &AuditReport{StartedAt: time.Now().UTC(), Findings: []AuditFinding{}}
	db := s.db.WithContext(ctx)

	var supplies []propertySupply
	if err := db.Table("properties AS p").
		Select("p.id, p.status, p.total_tokens, p.available_tokens, COALESCE(SUM(i.tokens), 0) AS issued").
		Joins("LEFT JOIN investments i ON i.property_id = p.id").
		Group("p.id, p.status, p.total_tokens, p.available_tokens").
		Scan(&supplies).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to load supply: %w", err))
	}
	report.PropertiesChecked = len(supplies)

	for _, p := range supplies {
		if p.Issued > p.TotalTokens {
			report.Findings = append(report.Findings, AuditFinding{
				Kind:       FindingSupplyExceeded,
				PropertyID: p.ID,
				Detail:     fmt.Sprintf("%d tokens issued against a supply of %d", p.Issued, p.TotalTokens),
			})
		}

		if p.Status == models.PropertyStatusDraft {
			continue
		}
		expected := accounting.AvailableTokens(p.TotalTokens, p.Issued)
		if p.AvailableTokens == expected {
			continue
		}

		finding := AuditFinding{
			Kind:       FindingCounterDrift,
			PropertyID: p.ID,
			Detail:     fmt.Sprintf("available_tokens is %d, ledger implies %d", p.AvailableTokens, expected),
		}
		if repair {
			if err := s.repairCounter(ctx, p.ID); err != nil {
				return nil, classifyWriteError(err)
			}
			finding.Repaired = true
			report.Repaired++
		}
		report.Findings = append(report.Findings, finding)
	}

	var reservations []reservation
	if err := db.Raw(`
		SELECT o.property_id, o.seller_user_id AS user_id,
		       COALESCE((SELECT SUM(i.tokens) FROM investments i
		                 WHERE i.property_id = o.property_id AND i.user_id = o.seller_user_id), 0) AS held,
		       SUM(o.tokens) AS reserved
		FROM sell_orders o
		WHERE o.status = ?
		GROUP BY o.property_id, o.seller_user_id`, models.SellOrderStatusPending).
		Scan(&reservations).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to load reservations: %w", err))
	}
	for _, r := range reservations {
		if r.Reserved > r.Held {
			report.Findings = append(report.Findings, AuditFinding{
				Kind:       FindingOverReserved,
				PropertyID: r.PropertyID,
				UserID:     r.UserID,
				Detail:     fmt.Sprintf("%d tokens listed for sale but only %d held", r.Reserved, r.Held),
			})
		}
	}

	var unregistered []models.Investment
	if err := db.Table("investments AS i").
		Select("i.*").
		Joins("LEFT JOIN settlements s ON s.settlement_id = i.settlement_id").
		Where("s.settlement_id IS NULL").
		Scan(&unregistered).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to load settlement coverage: %w", err))
	}
	for _, inv := range unregistered {
		report.Findings = append(report.Findings, AuditFinding{
			Kind:       FindingMissingSettlement,
			PropertyID: inv.PropertyID,
			UserID:     inv.UserID,
			Reference:  inv.SettlementID,
			Detail:     "investment has no settlement registry entry",
		})
	}

	var reverted []models.Settlement
	if err := db.Where("verification_status = ?", models.VerificationStatusReverted).
		Find(&reverted).Error; err != nil {
		return nil, classifyWriteError(fmt.Errorf("failed to load reverted settlements: %w", err))
	}
	for _, st := range reverted {
		report.Findings = append(report.Findings, AuditFinding{
			Kind:       FindingRevertedSettle,
			PropertyID: st.PropertyID,
			Reference:  st.SettlementID,
			Detail:     fmt.Sprintf("%s settlement reverted on chain: %s", st.Kind, st.VerificationNote),
		})
	}

	report.FinishedAt = time.Now().UTC()
	s.logReport(report)

	if s.archive != nil {
		location, err := s.archiveReport(ctx, report)
		if err != nil {
			logrus.WithError(err).Warn("Failed to archive ledger audit report")
		} else {
			report.ArchiveLocation = location
		}
	}

	return report, nil
}

// repairCounter rewrites one property's counter under the same lock that
// reconciliation transactions take.
func (s *LedgerAuditService) repairCounter(ctx context.Context, propertyID uuid.UUID) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		property, err := lockProperty(tx, propertyID)
		if err != nil {
			return err
		}
		issued, err := issuedTokens(tx, propertyID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Property{}).
			Where("id = ?", propertyID).
			Update("available_tokens", accounting.AvailableTokens(property.TotalTokens, issued)).Error
	})
}

func (s *LedgerAuditService) logReport(report *AuditReport) {
	entry := logrus.WithFields(logrus.Fields{
		"properties": report.PropertiesChecked,
		"findings":   len(report.Findings),
		"repaired":   report.Repaired,
		"duration":   report.FinishedAt.Sub(report.StartedAt).String(),
	})
	if report.Healthy() {
		entry.Info("Ledger audit clean")
		return
	}

	for _, f := range report.Findings {
		logrus.WithFields(logrus.Fields{
			"kind":        f.Kind,
			"property_id": f.PropertyID,
			"user_id":     f.UserID,
			"reference":   f.Reference,
			"repaired":    f.Repaired,
		}).Error(f.Detail)
	}
	entry.Warn("Ledger audit found inconsistencies")
}

func (s *LedgerAuditService) archiveReport(ctx context.Context, report *AuditReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s.json",
		report.StartedAt.Format("2006/01/02"),
		report.StartedAt.Format("20060102T150405Z"))
	return s.archive.Archive(ctx, key, body)
}
