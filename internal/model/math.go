package model

import "math"

func expF32(x float32) float32 { return float32(math.Exp(float64(x))) }
func logF32(x float32) float32 { return float32(math.Log(float64(x))) }
