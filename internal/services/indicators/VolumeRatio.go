package indicators

import "math"

// VolumeRatioService computes relative volume: current volume against its
// rolling average. A ratio above 2.0 marks unusually high participation.
type VolumeRatioService struct{}

func NewVolumeRatioService() *VolumeRatioService {
	return &VolumeRatioService{}
}

// Calculate returns volume / avg(volume, period) per bar. NaN until a full
// window exists or when the average is zero.
func (s *VolumeRatioService) Calculate(volumes []float64, period int) []float64 {
	rvr := make([]float64, len(volumes))
	avg := NewSMAService().Calculate(volumes, period)

	for i := range volumes {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			rvr[i] = math.NaN()
			continue
		}
		rvr[i] = volumes[i] / avg[i]
	}

	return rvr
}
