package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
)

func createJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewJob
		if !bindJSON(c, &input) {
			return
		}
		job, err := models.CreateJob(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

func listJobsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.JobFilter
		if !bindQuery(c, &filter) {
			return
		}
		jobs, pageInfo, err := models.GetJobs(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, jobs, pageInfo)
	}
}

// getJobHandler accepts the internal id or the public jobId.
func getJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := models.GetJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func updateJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateJobInput
		if !bindJSON(c, &input) {
			return
		}
		job, err := models.UpdateJob(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func listFoldersHandler(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		folders, err := models.GetFolders(c.Request.Context(), c.Param(param))
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, folders, nil)
	}
}

func listUploadsHandler(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.UploadFilter
		if !bindQuery(c, &filter) {
			return
		}
		uploads, err := models.GetEditorUploads(c.Request.Context(), c.Param(param), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, uploads, nil)
	}
}
