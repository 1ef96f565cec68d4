package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/middlewares"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Orders"

var exportHeadings = []string{
	"Order Number", "Status", "Job", "Address", "Customer", "Editor",
	"Estimated Total", "Revision Rounds", "Created", "Completed",
}

func exportOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.OrderExportFilter
		if !bindQuery(c, &filter) {
			return
		}
		ctx := c.Request.Context()
		rows, err := models.ExportOrders(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}

		var userIds, customerIds []string
		for _, r := range rows {
			if id := r.Order.AssigneeId(); id != "" {
				userIds = append(userIds, id)
			}
			if r.Order.CustomerId != nil && *r.Order.CustomerId != "" {
				customerIds = append(customerIds, *r.Order.CustomerId)
			}
		}
		editors := map[string]string{}
		if len(userIds) > 0 {
			users, _ := middlewares.GetUsers(ctx, utils.UniqueSlice(userIds))
			for _, u := range users {
				if u != nil {
					editors[u.ID] = u.Name
				}
			}
		}
		customers := map[string]string{}
		if len(customerIds) > 0 {
			found, _ := middlewares.GetCustomers(ctx, utils.UniqueSlice(customerIds))
			for _, cu := range found {
				if cu != nil {
					customers[cu.ID] = cu.Name
				}
			}
		}

		f, err := buildOrderWorkbook(rows, editors, customers)
		if err != nil {
			respondError(c, utils.Internal("failed to build export", err))
			return
		}
		defer f.Close()

		filename := fmt.Sprintf("orders-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}

func buildOrderWorkbook(rows []models.OrderExportRow, editors, customers map[string]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	for i, h := range exportHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, r := range rows {
		o := r.Order
		jobRef, address := "", ""
		if r.Job != nil {
			jobRef, address = r.Job.JobId, r.Job.Address
		}
		completed := ""
		if o.CompletedAt != nil {
			completed = o.CompletedAt.UTC().Format(time.RFC3339)
		}
		total, _ := o.EstimatedTotal.Float64()
		values := []interface{}{
			o.OrderNumber,
			string(o.Status),
			jobRef,
			address,
			customers[utils.DereferencePtr(o.CustomerId)],
			editors[o.AssigneeId()],
			total,
			o.UsedRevisionRounds,
			o.CreatedAt.UTC().Format(time.RFC3339),
			completed,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}
	return f, nil
}
