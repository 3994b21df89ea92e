package intake

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"feedbackbot/internal/domain"
)

func TestReadTableAndColumn(t *testing.T) {
	csvText := "\ufeffid,Review Text,rating\n" +
		"1,App crashes on login,1\n" +
		"2,,3\n" +
		"3,\"Please add dark mode, thanks\",4\n" +
		"4\n"

	table, err := ReadTable(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Equal(t, []string{"id", "Review Text", "rating"}, table.Columns())
	require.Equal(t, 4, table.RowCount())

	values, err := table.Column("Review Text")
	require.NoError(t, err)
	require.Equal(t, []string{"App crashes on login", "", "Please add dark mode, thanks", ""}, values)

	// Case-insensitive fallback.
	values, err = table.Column(" review text ")
	require.NoError(t, err)
	require.Len(t, values, 4)
}

func TestColumnMissingIsInputError(t *testing.T) {
	table, err := ReadTable(strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	_, err = table.Column("review")
	var inErr *InputError
	require.True(t, errors.As(err, &inErr), "expected *InputError, got %T", err)
	require.Contains(t, inErr.Error(), "available: a, b")
}

func TestReadTableEmptyFile(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""))
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
}

func TestFeedbackColumnDropsEmpty(t *testing.T) {
	table, err := ReadTable(strings.NewReader("review\nfirst\n   \n\nsecond\n"))
	require.NoError(t, err)

	items, err := table.FeedbackColumn("review")
	require.NoError(t, err)
	require.Equal(t, []domain.FeedbackItem{"first", "second"}, items)

	blank, err := ReadTable(strings.NewReader("review,other\n ,x\n"))
	require.NoError(t, err)
	_, err = blank.FeedbackColumn("review")
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
}
