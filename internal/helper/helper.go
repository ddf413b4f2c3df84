package helper

import "math"

// RoundDown обрезает вниз до decimals знаков: объёмы и цены заявок
// нельзя округлять вверх.
func RoundDown(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Floor(value*factor) / factor
}
