package analytics

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestInsertPointsIfUpdatedSkipsDuplicateValue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT value FROM point").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(500)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := InsertPointsIfUpdated{ChannelID: "1", Value: 500, CreatedAt: time.Now()}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPointsIfUpdatedInsertsOnChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT value FROM point").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(500)))
	mock.ExpectExec("INSERT INTO point").
		WithArgs("1", int64(600), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := InsertPointsIfUpdated{ChannelID: "1", Value: 600, CreatedAt: time.Now()}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBetKind(t *testing.T) {
	w := PlaceBet{ChannelID: "1", EventID: "e1", OutcomeID: "o1", Points: 100}
	require.Equal(t, "placeBet", w.Kind())
}

func TestEndPredictionKind(t *testing.T) {
	w := EndPrediction{ChannelID: "1", EventID: "e1"}
	require.Equal(t, "endPrediction", w.Kind())
}

func TestUpsertPredictionNoOpsOnSameEventID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT event_id FROM prediction").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("e1"))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := UpsertPrediction{ChannelID: "1", EventID: "e1", Outcomes: []string{}}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPredictionInsertsOnNewEventID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT event_id FROM prediction").
		WithArgs("1").
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow("e1"))
	mock.ExpectExec("INSERT INTO prediction").
		WithArgs("1", "e2", "title", int64(60), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := UpsertPrediction{ChannelID: "1", EventID: "e2", Title: "title", WindowSeconds: 60, Outcomes: []string{}, CreatedAt: time.Now()}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEndPredictionSetsOutcomes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE prediction SET winning_outcome_id").
		WithArgs("o1", sqlmock.AnyArg(), sqlmock.AnyArg(), "1", "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := EndPrediction{ChannelID: "1", EventID: "e1", WinningOutcomeID: "o1", Outcomes: []string{}, ClosedAt: time.Now()}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPointsTagsPriorRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO point").
		WithArgs("1", int64(900), "Prediction", "e1", int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	w := InsertPoints{ChannelID: "1", Value: 900, InfoKind: "Prediction", EventID: "e1", PointRowID: 7, CreatedAt: time.Now()}
	require.NoError(t, w.Execute(tx))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
