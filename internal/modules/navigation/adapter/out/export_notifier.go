package out

import (
	"context"

	exportdto "onsetscore/internal/modules/export/dto"
	exportin "onsetscore/internal/modules/export/port/in"
	"onsetscore/internal/modules/navigation/domain"
	navigationout "onsetscore/internal/modules/navigation/port/out"
)

// ExportNotifier forwards participant completions to the export plugins.
type ExportNotifier struct {
	exports exportin.Usecase
}

func NewExportNotifier(exports exportin.Usecase) navigationout.CompletionNotifier {
	return &ExportNotifier{exports: exports}
}

func (n *ExportNotifier) ParticipantComplete(ctx context.Context, event domain.CompletionEvent) error {
	input := exportdto.ParticipantReportInput{
		RaterID:       event.RaterID,
		DatasetID:     event.DatasetID,
		ParticipantID: event.ParticipantID,
		Trials:        make([]exportdto.TrialReport, 0, len(event.Trials)),
	}
	for _, t := range event.Trials {
		input.Trials = append(input.Trials, exportdto.TrialReport{
			TrialNumber: t.TrialNumber,
			Word:        t.Word,
			AutoOnsetMs: t.AutoOnsetMs,
			Accuracy:    string(t.Score.Accuracy),
			OnsetMs:     t.Score.OnsetMs,
			OnsetStatus: t.Score.OnsetStatus.String(),
			Note:        t.Score.Note,
		})
	}
	_, err := n.exports.ParticipantComplete(ctx, input)
	return err
}
