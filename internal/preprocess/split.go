package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds row indices into the original data.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions row indices so that each label class appears in
// train and test in (nearly) the same proportion as in labels.
//
// The test set has ceil(testSize*n) rows. Per-class test quotas are the
// floors of their proportional shares, with leftover rows handed to the
// classes with the largest remainders. Rows are drawn from a
// math/rand source seeded with seed, so equal inputs give equal splits.
//
// It fails with ErrStratify when labels is empty, a label is missing (""),
// any class has fewer than two members, or either side would be smaller than
// the number of classes.
func StratifiedSplit(labels []string, testSize float64, seed int64) (Split, error) {
	n := len(labels)
	if n == 0 {
		return Split{}, fmt.Errorf("%w: no rows", ErrStratify)
	}
	if testSize <= 0 || testSize >= 1 {
		return Split{}, fmt.Errorf("%w: test size %v outside (0, 1)", ErrStratify, testSize)
	}

	byClass := map[string][]int{}
	for i, l := range labels {
		if l == "" {
			return Split{}, fmt.Errorf("%w: missing label at row %d", ErrStratify, i+1)
		}
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sortCategories(classes)

	for _, c := range classes {
		if len(byClass[c]) < 2 {
			return Split{}, fmt.Errorf("%w: class %q has %d member(s), need at least 2", ErrStratify, c, len(byClass[c]))
		}
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < len(classes) || nTrain < len(classes) {
		return Split{}, fmt.Errorf("%w: %d train / %d test rows for %d classes", ErrStratify, nTrain, nTest, len(classes))
	}

	quota := allocate(classes, byClass, n, nTest)

	rng := rand.New(rand.NewSource(seed))
	var s Split
	for _, c := range classes {
		idx := append([]int{}, byClass[c]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		s.Test = append(s.Test, idx[:quota[c]]...)
		s.Train = append(s.Train, idx[quota[c]:]...)
	}
	rng.Shuffle(len(s.Train), func(a, b int) { s.Train[a], s.Train[b] = s.Train[b], s.Train[a] })
	rng.Shuffle(len(s.Test), func(a, b int) { s.Test[a], s.Test[b] = s.Test[b], s.Test[a] })
	return s, nil
}

// allocate distributes nTest rows over classes by largest remainder. Ties
// favor the larger class, then class order. No class gives up all of its
// rows.
func allocate(classes []string, byClass map[string][]int, n, nTest int) map[string]int {
	type share struct {
		class string
		size  int
		rem   float64
	}
	quota := make(map[string]int, len(classes))
	shares := make([]share, 0, len(classes))
	assigned := 0
	for _, c := range classes {
		size := len(byClass[c])
		exact := float64(nTest) * float64(size) / float64(n)
		q := int(math.Floor(exact))
		if q > size-1 {
			q = size - 1
		}
		quota[c] = q
		assigned += q
		shares = append(shares, share{class: c, size: size, rem: exact - float64(q)})
	}
	sort.SliceStable(shares, func(a, b int) bool {
		if shares[a].rem != shares[b].rem {
			return shares[a].rem > shares[b].rem
		}
		return shares[a].size > shares[b].size
	})
	for assigned < nTest {
		progressed := false
		for _, sh := range shares {
			if assigned == nTest {
				break
			}
			if quota[sh.class] < sh.size-1 {
				quota[sh.class]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return quota
}
