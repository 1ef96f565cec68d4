package models

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const rootFolderPrefix = "folders"

// UploadFolder groups deliverables of a job. NameSource records whether the
// last path segment was typed by a person or generated; rows without it are
// labelled by the token heuristic.
type UploadFolder struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	PartnerId        string    `gorm:"size:64;not null;index" json:"partnerId"`
	JobId            string    `gorm:"size:36;not null;uniqueIndex:idx_folder_job_path,priority:1" json:"jobId"`
	FolderPath       string    `gorm:"size:512;not null;uniqueIndex:idx_folder_job_path,priority:2" json:"folderPath"`
	EditorFolderName string    `gorm:"size:255" json:"editorFolderName"`
	FolderToken      string    `gorm:"size:64" json:"folderToken"`
	NameSource       string    `gorm:"size:16" json:"nameSource"`
	FileCount        int       `gorm:"not null;default:0" json:"fileCount"`
	CreatedBy        string    `gorm:"size:128" json:"createdBy"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (f UploadFolder) GetPartnerId() string {
	return f.PartnerId
}

type FolderView struct {
	UploadFolder
	DisplayName string `json:"displayName"`
	IsRoot      bool   `json:"isRoot"`
}

func (f UploadFolder) View() *FolderView {
	return &FolderView{
		UploadFolder: f,
		DisplayName:  utils.FolderDisplayName(f.EditorFolderName, f.FolderPath, f.NameSource),
		IsRoot:       utils.IsRootFolder(f.FolderPath),
	}
}

type NewFolderInput struct {
	Name       string `json:"name"`
	ParentPath string `json:"parentPath"`
}

// NormalizeFolderPath trims slashes and rejects traversal. An empty result
// means the job root.
func NormalizeFolderPath(folderPath string) (string, error) {
	p := strings.Trim(strings.TrimSpace(folderPath), "/")
	if p == "" {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", utils.BadRequest("invalid folder path", map[string]string{"folderPath": "invalid"})
		}
	}
	return p, nil
}

// jobAccess resolves a job for either its own tenant's team or a partnered
// editor.
func jobAccess(ctx context.Context, jobRef string) (*Job, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	job, err := ResolveJob(ctx, jobRef)
	if err != nil {
		return nil, err
	}
	if partnerId, ok := utils.GetPartnerIdFromContext(ctx); ok && partnerId == job.PartnerId {
		return job, nil
	}
	if callerRole(ctx) != UserRoleEditor {
		return nil, utils.Forbidden("cannot access resource owned by other partner")
	}
	if err := requirePartnership(ctx, nil, job.PartnerId, uid); err != nil {
		return nil, err
	}
	return job, nil
}

// CreateFolder adds a folder to a job. Without a name a random token segment
// is generated.
func CreateFolder(ctx context.Context, jobRef string, input *NewFolderInput) (*FolderView, error) {
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return nil, err
	}
	parent, err := NormalizeFolderPath(input.ParentPath)
	if err != nil {
		return nil, err
	}
	if parent == "" {
		parent = rootFolderPrefix
	}

	uid, _ := utils.GetUserIdFromContext(ctx)
	folder := UploadFolder{
		ID:        newId(),
		PartnerId: job.PartnerId,
		JobId:     job.ID,
		CreatedBy: uid,
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		token, err := utils.RandomToken(6)
		if err != nil {
			return nil, err
		}
		folder.FolderToken = token
		folder.NameSource = utils.FolderNameSourceGenerated
		folder.FolderPath = path.Join(parent, token)
	} else {
		slug := utils.SlugFolderSegment(name)
		if slug == "" {
			return nil, utils.BadRequest("invalid folder name", map[string]string{"name": "invalid"})
		}
		folder.EditorFolderName = name
		folder.NameSource = utils.FolderNameSourceUser
		folder.FolderPath = path.Join(parent, slug)
	}

	// The unique (job_id, folder_path) index decides between concurrent creators.
	res := config.GetDB().WithContext(crossTenant(ctx)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "folder_path"}},
			DoNothing: true,
		}).
		Create(&folder)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.Conflict("folder already exists")
	}
	return folder.View(), nil
}

func GetFolders(ctx context.Context, jobRef string) ([]*FolderView, error) {
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return nil, err
	}
	var folders []UploadFolder
	err = config.GetDB().WithContext(crossTenant(ctx)).
		Where("job_id = ? AND partner_id = ?", job.ID, job.PartnerId).
		Order("folder_path").
		Find(&folders).Error
	if err != nil {
		return nil, err
	}
	views := make([]*FolderView, 0, len(folders))
	for _, f := range folders {
		views = append(views, f.View())
	}
	return views, nil
}

// bumpFolderCount adds delta to a folder's fileCount, creating the folder on
// first use. A folder created here came from a path the editor typed, so its
// name is shown verbatim.
func bumpFolderCount(tx *gorm.DB, partnerId, jobId, folderPath, createdBy string, delta int) error {
	folder := UploadFolder{
		ID:         newId(),
		PartnerId:  partnerId,
		JobId:      jobId,
		FolderPath: folderPath,
		NameSource: utils.FolderNameSourceUser,
		FileCount:  delta,
		CreatedBy:  createdBy,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}, {Name: "folder_path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"file_count": gorm.Expr("file_count + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&folder).Error
}
