package statistics

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/beatmarkt/BeatMarkt/app/repository"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/cache"
)

const (
	// CacheKeyProducerSales caches one producer's payout summary. Format
	// with the producer id and the range in days.
	CacheKeyProducerSales = "statistics:producer:%d:sales:%dd"
	CacheExpiration       = 5 * time.Minute

	DefaultRangeDays = 30
	MaxRangeDays     = 365
	topBeatsLimit    = 10
)

// ProducerSummary ist die Auszahlungssicht eines Produzenten.
type ProducerSummary struct {
	ProducerID uint                   `json:"producer_id"`
	RangeDays  int                    `json:"range_days"`
	TotalSales int64                  `json:"total_sales"`
	TotalCents int64                  `json:"total_cents"`
	Daily      []DailyPoint           `json:"daily"`
	TopBeats   []repository.BeatSales `json:"top_beats"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// DailyPoint is one day of the series, with the date flattened to a string
// so the cache round-trip is stable.
type DailyPoint struct {
	Date       string `json:"date"`
	SaleCount  int64  `json:"sale_count"`
	TotalCents int64  `json:"total_cents"`
}

// cacheStore is the subset of the cache package the summary needs; tests
// swap it out.
type cacheStore interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
}

type redisStore struct{}

func (redisStore) Get(key string) (string, error) { return cache.Get(key) }
func (redisStore) Set(key string, value string, expiration time.Duration) error {
	return cache.Set(key, value, expiration)
}

// ProducerSummaryFor is the handler-facing entry point, wired to the global
// repository factory and the shared Redis cache.
func ProducerSummaryFor(producerID uint, days int) (*ProducerSummary, error) {
	repo := repository.GetGlobalFactory().GetPurchaseRepository()
	return GetProducerSummary(repo, redisStore{}, producerID, days)
}

// GetProducerSummary returns the payout summary for a producer, cached for a
// few minutes. Days outside [1, MaxRangeDays] fall back to the default.
func GetProducerSummary(repo repository.PurchaseRepository, store cacheStore, producerID uint, days int) (*ProducerSummary, error) {
	if days <= 0 || days > MaxRangeDays {
		days = DefaultRangeDays
	}

	key := fmt.Sprintf(CacheKeyProducerSales, producerID, days)
	if store != nil {
		if raw, err := store.Get(key); err == nil && raw != "" {
			var cached ProducerSummary
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
			// Zerschossener Cache-Eintrag, neu berechnen
			log.Printf("statistics: dropping unreadable cache entry %s", key)
		}
	}

	summary, err := computeProducerSummary(repo, producerID, days)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if raw, err := json.Marshal(summary); err == nil {
			if err := store.Set(key, string(raw), CacheExpiration); err != nil {
				log.Printf("statistics: caching summary for producer %d failed: %v", producerID, err)
			}
		}
	}
	return summary, nil
}

func computeProducerSummary(repo repository.PurchaseRepository, producerID uint, days int) (*ProducerSummary, error) {
	totalCents, err := repo.SumCompletedByProducer(producerID)
	if err != nil {
		return nil, err
	}
	totalSales, err := repo.CountCompletedByProducer(producerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	end := now
	start := now.AddDate(0, 0, -days)
	dailyRows, err := repo.DailySalesByProducer(producerID, start, end)
	if err != nil {
		return nil, err
	}
	daily := make([]DailyPoint, 0, len(dailyRows))
	for _, row := range dailyRows {
		daily = append(daily, DailyPoint{
			Date:       row.Date.Format("2006-01-02"),
			SaleCount:  row.SaleCount,
			TotalCents: row.TotalCents,
		})
	}

	topBeats, err := repo.TopBeatsByProducer(producerID, topBeatsLimit)
	if err != nil {
		return nil, err
	}

	return &ProducerSummary{
		ProducerID: producerID,
		RangeDays:  days,
		TotalSales: totalSales,
		TotalCents: totalCents,
		Daily:      daily,
		TopBeats:   topBeats,
		UpdatedAt:  now,
	}, nil
}
