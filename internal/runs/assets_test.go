package runs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListSamples(t *testing.T) {
	run := t.TempDir()
	for _, name := range []string{"a.png", "c.jpg", "b.jpeg", "notes.txt", "d.gif", "e.PNG"} {
		write(t, run, "samples/"+name, "x")
	}
	write(t, run, "samples/nested/z.png", "x")

	assert.Equal(t, []string{"a.png", "b.jpeg", "c.jpg"}, ListSamples(run))
}

func TestListSamplesKeepsEpochNames(t *testing.T) {
	run := t.TempDir()
	write(t, run, "samples/sample_epoch_1.png", "x")
	write(t, run, "samples/sample_epoch_2.png", "x")

	assert.Equal(t, []string{"sample_epoch_1.png", "sample_epoch_2.png"}, ListSamples(run))
}

func TestListAssetsMissingDirs(t *testing.T) {
	run := t.TempDir()

	samples := ListSamples(run)
	plots := ListPlots(run, PlotsLatestEpoch)
	require.NotNil(t, samples)
	require.NotNil(t, plots)
	assert.Empty(t, samples)
	assert.Empty(t, plots)
}

func TestListPlotsLatestEpoch(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{"single epoch variant", []string{"loss.png", "loss_epoch_5.png"}, []string{"loss.png", "loss_epoch_5.png"}},
		{
			"numeric not lexical",
			[]string{"loss_curves.png", "loss_curves_epoch_2.png", "loss_curves_epoch_10.png", "loss_curves_epoch_9.png"},
			[]string{"loss_curves.png", "loss_curves_epoch_10.png"},
		},
		{
			"grouped by base name",
			[]string{"acc_epoch_1.png", "acc_epoch_3.jpg", "loss_epoch_2.png", "loss_epoch_1.png"},
			[]string{"acc_epoch_3.jpg", "loss_epoch_2.png"},
		},
		{"non numeric suffix dropped", []string{"loss_epoch_final.png", "loss.png"}, []string{"loss.png"}},
		{"non image ignored", []string{"loss.png", "loss_epoch_3.svg", "readme.md"}, []string{"loss.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := t.TempDir()
			for _, f := range tt.files {
				write(t, run, "plots/"+f, "x")
			}
			assert.Equal(t, tt.want, ListPlots(run, PlotsLatestEpoch))
		})
	}
}

func TestListPlotsDropEpoch(t *testing.T) {
	run := t.TempDir()
	for _, f := range []string{"loss.png", "loss_epoch_5.png", "acc.jpg", "acc_epoch_1.jpg"} {
		write(t, run, "plots/"+f, "x")
	}

	assert.Equal(t, []string{"acc.jpg", "loss.png"}, ListPlots(run, PlotsDropEpoch))
}

func TestParsePlotPolicy(t *testing.T) {
	p, err := ParsePlotPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PlotsLatestEpoch, p)

	p, err = ParsePlotPolicy(" Drop-Epoch ")
	require.NoError(t, err)
	assert.Equal(t, PlotsDropEpoch, p)

	_, err = ParsePlotPolicy("newest")
	assert.Error(t, err)
}
