package optical

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/sarchlab/qnetsim/sim/timing"
)

// Epsilon is the fraction of a time bin below which a time still counts as
// the start of that bin.
const Epsilon = 1e-8

// MaxFrequency is the highest time-bin frequency in Hz. Above it a bin is
// so close to one picosecond that truncated bin starts no longer map back
// to their bins.
const MaxFrequency = (1 - Epsilon) * 1e12

const (
	psPerSecond    = uint64(timing.Second)
	millihertz     = 1000
	epsilonInverse = uint64(1 / Epsilon)
)

// binClock converts between simulated time and the time bins of a fixed
// frequency. The frequency is held as the exact fraction num/den Hz.
type binClock struct {
	num uint64
	den uint64
}

func newBinClock(frequency float64) (binClock, error) {
	if !(frequency > 0) || frequency > MaxFrequency {
		return binClock{}, fmt.Errorf(
			"frequency %g Hz out of range (0, %g]", frequency, MaxFrequency)
	}

	num := uint64(math.Round(frequency * millihertz))
	if num == 0 {
		return binClock{}, fmt.Errorf(
			"frequency %g Hz is below the mHz resolution", frequency)
	}

	den := uint64(millihertz)
	g := gcd(num, den)

	return binClock{num: num / g, den: den / g}, nil
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}

// Frequency returns the frequency in Hz.
func (c binClock) Frequency() float64 {
	return float64(c.num) / float64(c.den)
}

// TimeToBin returns the bin at or after t. A time that is past the start of
// a bin by no more than Epsilon of a bin maps to that bin.
func (c binClock) TimeToBin(t timing.VTimeInPS) int64 {
	timeMustNotBeNegative(t)

	divisor := psPerSecond * c.den
	hi, lo := bits.Mul64(uint64(t), c.num)
	quo, rem := bits.Div64(hi, lo, divisor)

	remHi, remLo := bits.Mul64(rem, epsilonInverse)
	if remHi > 0 || remLo > divisor {
		quo++
	}

	return int64(quo)
}

// BinToTime returns the start of the bin, truncated to a picosecond.
func (c binClock) BinToTime(bin int64) timing.VTimeInPS {
	if bin < 0 {
		panic(fmt.Sprintf("negative time bin %d", bin))
	}

	hi, lo := bits.Mul64(uint64(bin), psPerSecond*c.den)
	if hi >= c.num {
		panic(fmt.Sprintf("time bin %d out of range", bin))
	}

	quo, _ := bits.Div64(hi, lo, c.num)
	if quo > math.MaxInt64 {
		panic(fmt.Sprintf("time bin %d out of range", bin))
	}

	return timing.VTimeInPS(quo)
}

func timeMustNotBeNegative(t timing.VTimeInPS) {
	if t < 0 {
		panic(fmt.Sprintf("negative time %d", t))
	}
}
