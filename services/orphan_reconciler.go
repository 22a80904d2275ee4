package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/cloud-kitchen/metrics"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

// OrphanReconciler repairs orders whose header was saved but whose lines were never
// confirmed. Headers with lines are completed; empty headers are removed.
type OrphanReconciler struct {
	store    OrderStore
	Grace    time.Duration
	Interval time.Duration
	StopChan chan struct{}

	stopOnce sync.Once
}

func NewOrphanReconciler(store OrderStore, grace, interval time.Duration) *OrphanReconciler {
	return &OrphanReconciler{
		store:    store,
		Grace:    grace,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (r *OrphanReconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, _, err := r.ReconcileOnce(ctx); err != nil {
					utils.ErrorLogger.Printf("Error reconciling orphaned orders: %v", err)
				}
			case <-r.StopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the loop started by Start. It is safe to call more than once.
func (r *OrphanReconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.StopChan)
	})
}

// ReconcileOnce handles every orphan older than the grace period.
func (r *OrphanReconciler) ReconcileOnce(ctx context.Context) (completed, removed int, err error) {
	orphans, err := r.store.ListOrphans(ctx, time.Now().Add(-r.Grace))
	if err != nil {
		return 0, 0, err
	}

	for _, order := range orphans {
		n, err := r.store.CountOrderLines(ctx, order.ID)
		if err != nil {
			return completed, removed, err
		}

		if n > 0 {
			if err := r.store.MarkLinesCommitted(ctx, order.ID); err != nil {
				return completed, removed, err
			}
			completed++
			metrics.OrphansReconciled.WithLabelValues("completed").Inc()
			utils.InfoLogger.Printf("Orphaned order %s completed with %d lines", order.DisplayID, n)
			continue
		}

		if err := r.store.DeleteOrder(ctx, order.ID); err != nil {
			return completed, removed, err
		}
		removed++
		metrics.OrphansReconciled.WithLabelValues("removed").Inc()
		utils.InfoLogger.Printf("Orphaned order %s removed, no lines were saved", order.DisplayID)
	}
	return completed, removed, nil
}
