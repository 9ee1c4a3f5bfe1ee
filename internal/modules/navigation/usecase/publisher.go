package usecase

import (
	"onsetscore/internal/modules/navigation/domain"
	"onsetscore/internal/modules/navigation/dto"
	navigationout "onsetscore/internal/modules/navigation/port/out"
)

type viewPublisher struct {
	publish func(dto.ViewOutput)
}

// NewViewPublisher adapts a surface that consumes flattened views into the
// controller's renderer. publish runs on the navigating goroutine and must
// not block on navigation.
func NewViewPublisher(publish func(dto.ViewOutput)) navigationout.Renderer {
	return viewPublisher{publish: publish}
}

func (p viewPublisher) OnNavigate(view domain.View) {
	out := toViewOutput(view)
	out.Moved = true
	p.publish(out)
}
