package in

import (
	"context"

	"onsetscore/internal/modules/exhibit/dto"
)

type Usecase interface {
	Locate(ctx context.Context, input dto.LocateInput) (dto.LocateOutput, error)
	Release(ctx context.Context) error
}
