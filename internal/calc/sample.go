package calc

// SampleExpression is the example inserted by InsertSample.
const SampleExpression = "sin(pi/2) + ln(10) + 2**3"

// InsertSample overwrites field with SampleExpression.
func InsertSample(field Sink) {
	field.SetText(SampleExpression)
}
