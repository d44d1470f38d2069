package export

import (
	"bytes"
	"testing"

	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestWeekReport_WriteWeek(t *testing.T) {
	week := entity.WeekKey{Year: 2025, Week: 46}
	manifests := []*entity.DocumentManifest{
		{
			ManifestNumber: "33693",
			Week:           week,
			Items: []*entity.LineItem{
				{ProductCode: "412345", ProductName: "Parkside fúrószár készlet", ExpectedQty: 3, FoundEvents: []int{2, 1}, Total: 3, Collected: true},
			},
		},
		{
			ManifestNumber: "43531",
			Week:           week,
			Items: []*entity.LineItem{
				{ProductCode: "473440", ProductName: "Livarno tölcsérszűrőbetét kutyafül", ExpectedQty: 1},
				{ProductCode: "473465", ProductName: "Livarno Led függöny", ExpectedQty: 2, Total: 5, Overridden: true, Collected: true},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewWeekReport(zap.NewNop()).WriteWeek(&buf, week, manifests))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"2025-W46"}, f.GetSheetList())

	rows, err := f.GetRows("2025-W46")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Bizonylatszám", rows[0][0])
	assert.Equal(t, []string{"33693", "412345", "Parkside fúrószár készlet", "3", "2+1", "3", "0", "igen"}, rows[1])
	assert.Equal(t, []string{"43531", "473440", "Livarno tölcsérszűrőbetét kutyafül", "1", "", "0", "-1", "nem"}, rows[2])
	assert.Equal(t, []string{"43531", "473465", "Livarno Led függöny", "2", "", "5", "3", "igen"}, rows[3])
}

func TestWeekReport_EmptyWeek(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWeekReport(zap.NewNop()).WriteWeek(&buf, entity.WeekKey{Year: 2025, Week: 1}, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("2025-W01")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
