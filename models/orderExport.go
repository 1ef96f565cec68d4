package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/config"
)

const maxExportRows = 5000

type OrderExportFilter struct {
	Status string    `form:"status"`
	From   time.Time `form:"from" time_format:"2006-01-02"`
	To     time.Time `form:"to" time_format:"2006-01-02"`
}

// OrderExportRow is one spreadsheet line: the order plus its job.
type OrderExportRow struct {
	Order *Order
	Job   *Job
}

// ExportOrders lists the caller's orders oldest first for the XLSX export.
// Only managers may export.
func ExportOrders(ctx context.Context, filter OrderExportFilter) ([]OrderExportRow, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		dbCtx = dbCtx.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		dbCtx = dbCtx.Where("created_at < ?", filter.To.AddDate(0, 0, 1))
	}
	var orders []*Order
	if err := dbCtx.Order("created_at ASC").Limit(maxExportRows).Find(&orders).Error; err != nil {
		return nil, err
	}

	jobIds := make([]string, 0, len(orders))
	for _, o := range orders {
		jobIds = append(jobIds, o.JobId)
	}
	var jobs []*Job
	if len(jobIds) > 0 {
		if err := config.GetDB().WithContext(ctx).Where("partner_id = ? AND id IN ?", partnerId, jobIds).Find(&jobs).Error; err != nil {
			return nil, err
		}
	}
	jobById := make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		jobById[j.ID] = j
	}

	rows := make([]OrderExportRow, len(orders))
	for i, o := range orders {
		rows[i] = OrderExportRow{Order: o, Job: jobById[o.JobId]}
	}
	return rows, nil
}
