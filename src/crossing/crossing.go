package crossing

import "posbot/src/model"

// Detect classifies the move from prev to now against the band [-threshold, +threshold].
//
// A crossing needs the previous sample at or beyond one edge of the band and the current sample at or
// beyond the opposite edge. Only the immediately preceding sample is considered.
func Detect(prev, now, threshold float64) model.Direction {
	if prev <= -threshold && now >= threshold {
		return model.DirectionLossToProfit
	}
	if prev >= threshold && now <= -threshold {
		return model.DirectionProfitToLoss
	}
	return model.DirectionNone
}
