package in

import (
	"context"

	"onsetscore/internal/modules/exhibit/dto"
	exhibitin "onsetscore/internal/modules/exhibit/port/in"
)

type TUIHandler struct {
	usecase exhibitin.Usecase
}

func NewTUIHandler(usecase exhibitin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Locate(ctx context.Context, input dto.LocateInput) (dto.LocateOutput, error) {
	return h.usecase.Locate(ctx, input)
}
