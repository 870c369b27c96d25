package sensor

// BatterySink receives asynchronous battery temperature updates
type BatterySink interface {
	OnBatteryUpdate(celsius float64)
}

// AmbientSink receives asynchronous ambient temperature updates
type AmbientSink interface {
	OnAmbientUpdate(celsius float64)
}
