package alac

// firstOrder is the order value that selects a plain running sum instead
// of the adaptive filter.
const firstOrder = 31

// predict rebuilds samples from residuals with an adaptive FIR predictor.
//
// coefs is modified in place: after every sample the coefficients are
// nudged toward the sign of the prediction error. width is the significant
// bit count of the channel; every output is sign-extended from it. residual
// and out may alias.
func predict(residual, out []int32, coefs []int16, width, quant uint32) {
	n := len(residual)
	if n == 0 {
		return
	}

	shift := 32 - width
	order := len(coefs)

	out[0] = residual[0]

	if order == firstOrder {
		copy(out[1:n], residual[1:n])
		runningSum(out[:n], width)
		return
	}

	if order == 0 {
		copy(out[1:n], residual[1:n])
		return
	}

	// Warm-up: the first order samples are coded as first differences.
	warm := min(order, n-1)
	for j := 1; j <= warm; j++ {
		out[j] = signExtend(residual[j]+out[j-1], shift)
	}

	var half int32
	if quant > 0 {
		half = 1 << (quant - 1)
	}

	for j := order + 1; j < n; j++ {
		top := out[j-order-1]
		recent := out[j-order : j]

		var sum int32
		for k, c := range coefs {
			sum += int32(c) * (recent[order-1-k] - top)
		}

		err := residual[j]
		out[j] = signExtend(err+top+(sum+half)>>quant, shift)

		switch {
		case err > 0:
			for k := order - 1; k >= 0; k-- {
				d := top - recent[order-1-k]
				sg := sign(d)
				coefs[k] -= int16(sg)
				err -= int32(order-k) * ((sg * d) >> quant)
				if err <= 0 {
					break
				}
			}
		case err < 0:
			for k := order - 1; k >= 0; k-- {
				d := top - recent[order-1-k]
				sg := sign(d)
				coefs[k] += int16(sg)
				err -= int32(order-k) * ((-sg * d) >> quant)
				if err >= 0 {
					break
				}
			}
		}
	}
}

// runningSum undoes a first-order difference in place.
func runningSum(buf []int32, width uint32) {
	shift := 32 - width
	for j := 1; j < len(buf); j++ {
		buf[j] = signExtend(buf[j]+buf[j-1], shift)
	}
}

func signExtend(v int32, shift uint32) int32 {
	return (v << shift) >> shift
}

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
