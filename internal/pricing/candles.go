package pricing

import "optionDesk/internal/domain"

// Aggregate buckets quotes (oldest first) into candles aligned to the granularity.
func Aggregate(quotes []domain.Quote, g domain.Granularity) []domain.Candle {
	width := g.Duration()
	if width <= 0 || len(quotes) == 0 {
		return []domain.Candle{}
	}

	candles := make([]domain.Candle, 0)
	var cur *domain.Candle
	for _, q := range quotes {
		open := q.Time.Truncate(width)
		if cur == nil || !cur.OpenTime.Equal(open) {
			if cur != nil {
				candles = append(candles, *cur)
			}
			cur = &domain.Candle{
				OpenTime:    open,
				CloseTime:   open.Add(width),
				Symbol:      q.Symbol,
				Granularity: g,
				Open:        q.Price,
				High:        q.Price,
				Low:         q.Price,
				Close:       q.Price,
			}
		}
		if q.Price > cur.High {
			cur.High = q.Price
		}
		if q.Price < cur.Low {
			cur.Low = q.Price
		}
		cur.Close = q.Price
		cur.Ticks++
	}
	candles = append(candles, *cur)
	return candles
}
