package prepare

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"heartprep/internal/dataset"
	"heartprep/internal/features"
	"heartprep/internal/preprocess"
	"heartprep/internal/storage"
	_ "heartprep/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

func smallSet() features.Set {
	return features.Set{
		IDColumns:       []string{"data_id", "patient_id"},
		Label:           "mortality",
		Unsupervised:    []string{"bp", "age"},
		SupervisedExtra: []string{"gender"},
		Numeric:         []string{"bp", "age"},
		Categorical:     []string{"gender"},
	}
}

// seed creates heart_data with every query column of set and loads rows
// produced by gen. It returns an opener that counts Close calls.
func seed(t *testing.T, set features.Set, n int, gen func(i int, col string) any) (Opener, *int) {
	t.Helper()
	cfg := storage.Config{Kind: "sqlite", DSN: filepath.Join(t.TempDir(), "heart.db"), Table: "heart_data"}
	repo, err := storage.New(context.Background(), cfg)
	require.NoError(t, err)
	defer repo.Close()

	var defs, cols []string
	for _, c := range set.QueryColumns() {
		if c == "data_id" {
			defs = append(defs, "data_id INTEGER PRIMARY KEY AUTOINCREMENT")
			continue
		}
		defs = append(defs, fmt.Sprintf("%q TEXT", c))
		cols = append(cols, c)
	}
	require.NoError(t, repo.Exec(context.Background(),
		"CREATE TABLE heart_data ("+strings.Join(defs, ", ")+")"))

	rows := make([][]any, n)
	for i := range rows {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = gen(i, c)
		}
		rows[i] = row
	}
	_, err = storage.LoadRows(context.Background(), repo, cols, rows, 0, nil)
	require.NoError(t, err)

	closes := 0
	return func(ctx context.Context) (storage.Repository, error) {
		r, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &countingRepo{Repository: r, closes: &closes}, nil
	}, &closes
}

type countingRepo struct {
	storage.Repository
	closes *int
}

func (c *countingRepo) Close() {
	*c.closes++
	c.Repository.Close()
}

func smallGen(i int, col string) any {
	switch col {
	case "patient_id":
		return fmt.Sprintf("P%d", i)
	case "mortality":
		return fmt.Sprint(i % 2)
	case "bp":
		if i == 3 {
			return nil
		}
		return fmt.Sprint(110 + 5*i)
	case "age":
		return fmt.Sprint(40 + i)
	case "gender":
		if i%3 == 0 {
			return "F"
		}
		return "M"
	}
	return nil
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func opts(t *testing.T, set features.Set) Options {
	return Options{
		Table:         "heart_data",
		OutputDir:     filepath.Join(t.TempDir(), "Pre_Process"),
		TestSize:      0.2,
		Seed:          42,
		HandleUnknown: preprocess.UnknownIgnore,
		Features:      set,
	}
}

func TestRun_WritesArtifacts(t *testing.T) {
	t.Parallel()

	open, closes := seed(t, smallSet(), 10, smallGen)
	o := opts(t, smallSet())

	res, err := Run(context.Background(), o, open, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, *closes, "repository released after the query")

	unsup := readCSV(t, filepath.Join(o.OutputDir, FileUnsupervised))
	assert.Equal(t, []string{"bp", "age"}, unsup[0])
	assert.Len(t, unsup, 11)

	xTrain := readCSV(t, filepath.Join(o.OutputDir, FileXTrain))
	xTest := readCSV(t, filepath.Join(o.OutputDir, FileXTest))
	yTrain := readCSV(t, filepath.Join(o.OutputDir, FileYTrain))
	yTest := readCSV(t, filepath.Join(o.OutputDir, FileYTest))

	assert.Equal(t, []string{"0", "1", "2", "3"}, xTrain[0], "2 numeric + gender_F + gender_M")
	assert.Len(t, xTrain, 9)
	assert.Len(t, xTest, 3)
	assert.Equal(t, []string{"mortality"}, yTrain[0])
	assert.Len(t, yTrain, 9)
	assert.Len(t, yTest, 3)
	assert.ElementsMatch(t, []string{"0", "1"}, []string{yTest[1][0], yTest[2][0]}, "one of each class in test")

	man := res.Manifest
	require.Len(t, man.Artifacts, 5)
	assert.Equal(t, []string{"F", "M"}, man.Categories["gender"])
	assert.Equal(t, []string{"bp", "age", "gender_F", "gender_M"}, man.SupervisedFeatures)
	assert.NotEmpty(t, man.RunID)
	for _, a := range man.Artifacts {
		b, err := os.ReadFile(filepath.Join(o.OutputDir, a.File))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%016x", xxh3.Hash(b)), a.XXH3, a.File)
	}

	raw, err := os.ReadFile(filepath.Join(o.OutputDir, FileManifest))
	require.NoError(t, err)
	var onDisk Manifest
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, man.RunID, onDisk.RunID)
	assert.Equal(t, "mortality", onDisk.Label)
}

// TestWrite_FailedRerunLeavesNoManifest makes the second write fail midway
// and expects the first run's manifest to be gone rather than describe files
// that have since been overwritten.
func TestWrite_FailedRerunLeavesNoManifest(t *testing.T) {
	t.Parallel()

	open, _ := seed(t, smallSet(), 10, smallGen)
	o := opts(t, smallSet())
	res, err := Run(context.Background(), o, open, zap.NewNop())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(o.OutputDir, FileManifest))

	xTest := filepath.Join(o.OutputDir, FileXTest)
	require.NoError(t, os.Remove(xTest))
	require.NoError(t, os.Mkdir(xTest, 0o755))

	_, err = Write(o.OutputDir, res.Matrices, manifestHeader("second-run", o))
	require.Error(t, err)
	assert.Contains(t, err.Error(), FileXTest)
	assert.NoFileExists(t, filepath.Join(o.OutputDir, FileManifest))
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	open, _ := seed(t, smallSet(), 10, smallGen)
	a, err := Run(context.Background(), opts(t, smallSet()), open, nil)
	require.NoError(t, err)
	b, err := Run(context.Background(), opts(t, smallSet()), open, nil)
	require.NoError(t, err)

	for i := range a.Manifest.Artifacts {
		assert.Equal(t, a.Manifest.Artifacts[i].XXH3, b.Manifest.Artifacts[i].XXH3, a.Manifest.Artifacts[i].File)
	}
}

// TestRun_DefaultFeatures exercises the full default feature lists: 38
// unsupervised columns, 40 numeric columns plus one-hot indicators, and
// thrombolysis dropped from the supervised matrix.
func TestRun_DefaultFeatures(t *testing.T) {
	t.Parallel()

	set := features.Default()
	cats := map[string]bool{}
	for _, c := range set.Categorical {
		cats[c] = true
	}
	gen := func(i int, col string) any {
		switch {
		case col == "patient_id":
			return fmt.Sprintf("P%03d", i)
		case col == "mortality":
			if i%4 == 0 {
				return "1"
			}
			return "0"
		case col == "gender":
			return []string{"M", "F"}[i%2]
		case cats[col]:
			return fmt.Sprint(i % 3)
		case i == 5:
			return nil
		default:
			return fmt.Sprintf("%d.5", (i*len(col))%17)
		}
	}
	open, _ := seed(t, set, 20, gen)
	o := opts(t, set)

	res, err := Run(context.Background(), o, open, nil)
	require.NoError(t, err)

	m := res.Matrices
	r, c := m.Unsupervised.Dims()
	assert.Equal(t, 20, r)
	assert.Equal(t, 38, c)

	// gender has 2 categories, the other 7 categoricals have 3 each.
	_, sc := m.XTrain.Dims()
	assert.Equal(t, 40+2+7*3, sc)
	assert.NotContains(t, m.SupervisedFeatures, "thrombolysis")
	assert.Len(t, m.YTest, 4)
	assert.Len(t, m.YTrain, 16)
}

func TestRun_MissingColumn(t *testing.T) {
	t.Parallel()

	stored := smallSet()
	open, _ := seed(t, stored, 6, smallGen)

	wanted := smallSet()
	wanted.Unsupervised = append(wanted.Unsupervised, "thal")
	wanted.SupervisedExtra = append(wanted.SupervisedExtra, "smoking")
	_, err := Run(context.Background(), opts(t, wanted), open, nil)
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
	assert.Contains(t, err.Error(), "smoking, thal")
}

func TestRun_AllMissingColumn(t *testing.T) {
	t.Parallel()

	gen := func(i int, col string) any {
		if col == "bp" {
			return nil
		}
		return smallGen(i, col)
	}
	open, _ := seed(t, smallSet(), 10, gen)
	_, err := Run(context.Background(), opts(t, smallSet()), open, nil)
	require.ErrorIs(t, err, preprocess.ErrAllMissing)
}

func TestRun_ConnectError(t *testing.T) {
	t.Parallel()

	open := func(context.Context) (storage.Repository, error) {
		return nil, fmt.Errorf("mysql: ping: connection refused")
	}
	_, err := Run(context.Background(), opts(t, smallSet()), open, nil)
	require.ErrorContains(t, err, "prepare: connect: mysql: ping")
}

func TestBuild_ReportsEveryMissingName(t *testing.T) {
	t.Parallel()

	frame, err := dataset.FromResult(&storage.ResultSet{
		Columns: []string{"data_id", "mortality", "bp"},
		Rows:    [][]any{{int64(1), "0", "120"}},
	})
	require.NoError(t, err)

	_, err = Build(frame, opts(t, smallSet()))
	require.ErrorIs(t, err, dataset.ErrMissingColumn)
	assert.Contains(t, err.Error(), "age, gender")
}

func TestBuild_SplitErrors(t *testing.T) {
	t.Parallel()

	frame, err := dataset.FromResult(&storage.ResultSet{
		Columns: []string{"bp", "age", "gender", "mortality"},
		Rows: [][]any{
			{"120", "50", "M", "0"},
			{"130", "60", "F", "0"},
			{"140", "70", "M", "1"},
		},
	})
	require.NoError(t, err)

	_, err = Build(frame, opts(t, smallSet()))
	require.ErrorIs(t, err, preprocess.ErrStratify)
}

func TestCanonicalLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", canonicalLabel("1.0"))
	assert.Equal(t, "1", canonicalLabel(" 01 "))
	assert.Equal(t, "yes", canonicalLabel("yes"))
}
