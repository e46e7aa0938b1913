package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/demandcast/backend/internal/models"
)

// WriteActivityWorkbook builds one sheet per quarter with the active and
// inactive cohorts side by side. Quarter labels are valid sheet names as-is.
func WriteActivityWorkbook(activities []models.QuarterlyActivity) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, qa := range activities {
		sheet := qa.Quarter
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return nil, err
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
		if err := f.SetSheetRow(sheet, "A1", &[]any{"Active Customers", "Inactive Customers"}); err != nil {
			return nil, err
		}
		n := len(qa.Active)
		if len(qa.Inactive) > n {
			n = len(qa.Inactive)
		}
		for r := 0; r < n; r++ {
			var active, inactive any
			if r < len(qa.Active) {
				active = qa.Active[r]
			}
			if r < len(qa.Inactive) {
				inactive = qa.Inactive[r]
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &[]any{active, inactive}); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}
