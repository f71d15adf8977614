package dto

type UpdateTableStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=free occupied"`
}

type TableResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}
