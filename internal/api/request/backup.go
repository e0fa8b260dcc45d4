package request

type RestoreBackup struct {
	ID    string `json:"id" validate:"required"`
	Force bool   `json:"force"`
}
