package denwarenji

import (
	"testing"

	"github.com/kagent-go/kagent/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDMailRejectsNegativeCheckpoint(t *testing.T) {
	d := New()
	d.SetNCheckpoints(5)
	err := d.SendDMail(DMail{Message: "rewind", CheckpointID: -1})
	require.Error(t, err)
	var dErr *errs.DenwaRenjiError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, errs.DMailNegativeCheckpoint, dErr.Kind)
}

func TestSendDMailRejectsCheckpointAtOrBeyondCount(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)
	err := d.SendDMail(DMail{Message: "rewind", CheckpointID: 3})
	require.Error(t, err)
	var dErr *errs.DenwaRenjiError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, errs.DMailInvalidCheckpoint, dErr.Kind)
}

func TestSendDMailAcceptsValidCheckpoint(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)
	require.NoError(t, d.SendDMail(DMail{Message: "rewind", CheckpointID: 2}))
}

func TestSendDMailRejectsSecondPending(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)
	require.NoError(t, d.SendDMail(DMail{Message: "first", CheckpointID: 0}))

	err := d.SendDMail(DMail{Message: "second", CheckpointID: 1})
	require.Error(t, err)
	var dErr *errs.DenwaRenjiError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, errs.DMailAlreadyPending, dErr.Kind)
}

func TestFetchPendingDMailTakesAndClears(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)
	require.NoError(t, d.SendDMail(DMail{Message: "rewind", CheckpointID: 1}))

	fetched := d.FetchPendingDMail()
	require.NotNil(t, fetched)
	assert.Equal(t, "rewind", fetched.Message)
	assert.Equal(t, int64(1), fetched.CheckpointID)

	assert.Nil(t, d.FetchPendingDMail())
}

func TestSendDMailAllowedAgainAfterFetch(t *testing.T) {
	d := New()
	d.SetNCheckpoints(3)
	require.NoError(t, d.SendDMail(DMail{Message: "first", CheckpointID: 0}))
	require.NotNil(t, d.FetchPendingDMail())
	require.NoError(t, d.SendDMail(DMail{Message: "second", CheckpointID: 1}))
}
