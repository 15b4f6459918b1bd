package cd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetadata struct {
	info *DiscInfo
	err  error
	id   uint32
}

func (f *fakeMetadata) Lookup(ctx context.Context, discID uint32, offsets []int32, leadOut int32) (*DiscInfo, error) {
	f.id = discID
	return f.info, f.err
}

func TestDiscID(t *testing.T) {
	// single 3 minute track starting at the first sector
	c, err := NewCatalog([]Track{{TrackNum: 1, StartSector: 0, EndSector: 180 * SectorsPerSecond}})
	require.NoError(t, err)
	// digit sum of 2s pregap = 2, length 180s, 1 track
	assert.Equal(t, uint32(0x0200b401), c.DiscID())
}

func TestLookupAsync(t *testing.T) {
	c := threeTracks(t)
	log, _ := test.NewNullLogger()
	svc := &fakeMetadata{info: &DiscInfo{
		Title:  "Chronic Town",
		Artist: "R.E.M.",
		Tracks: []TrackInfo{{Title: "Wolves, Lower"}, {Title: "Gardening at Night"}},
	}}

	<-c.LookupAsync(context.Background(), svc, log)

	assert.Equal(t, c.DiscID(), svc.id)
	assert.Equal(t, "Chronic Town", c.DiscText(TextTitle))
	assert.Equal(t, "R.E.M.", c.DiscText(TextPerformer))
	assert.Equal(t, fmt.Sprintf("%08x", c.DiscID()), c.DiscText(TextDiscID))
	assert.Equal(t, "Gardening at Night", c.TrackText(1, TextTitle))
	assert.Equal(t, "", c.TrackText(2, TextTitle))
}

func TestLookupAsyncFailureLeavesTextEmpty(t *testing.T) {
	c := threeTracks(t)
	log, hook := test.NewNullLogger()
	svc := &fakeMetadata{err: errors.New("connection refused")}

	<-c.LookupAsync(context.Background(), svc, log)

	assert.Equal(t, "", c.DiscText(TextTitle))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestLookupAsyncWithoutService(t *testing.T) {
	c := threeTracks(t)
	<-c.LookupAsync(context.Background(), nil, logrus.New())
	assert.Equal(t, "", c.DiscText(TextTitle))
}
