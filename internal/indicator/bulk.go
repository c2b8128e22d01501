package indicator

// BulkSMA recomputes the moving average from scratch: one value per index
// i >= period-1, each the plain mean of closes[i-period+1 : i+1].
func BulkSMA(closes []float64, period int) []float64 {
	if period < 1 || len(closes) < period {
		return nil
	}
	out := make([]float64, 0, len(closes)-period+1)
	for i := period - 1; i < len(closes); i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += closes[i-j]
		}
		out = append(out, sum/float64(period))
	}
	return out
}

// Closes adapts a float slice to CloseWindow.
type Closes []float64

func (c Closes) Len() int              { return len(c) }
func (c Closes) CloseAt(i int) float64 { return c[i] }
