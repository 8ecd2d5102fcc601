package catalog

func comfort(temp, moisture, ph, lux, vent Interval) Comfort {
	return Comfort{temp, moisture, ph, lux, vent}
}

func iv(low, high float64) Interval { return Interval{Low: low, High: high} }

func setTo(v float64) Effect { return Effect{Set: &v} }

// DefaultPlants returns the six crop profiles used by the benchmark.
func DefaultPlants() []Plant {
	return []Plant{
		{Type: PlantA, Name: "Type A", Comfort: comfort(iv(25, 28), iv(60, 70), iv(5.5, 6.5), iv(15000, 30000), iv(0.2, 0.3))},
		{Type: PlantB, Name: "Type B", Comfort: comfort(iv(28, 30), iv(50, 70), iv(5.0, 5.5), iv(10000, 15000), iv(0.3, 0.4))},
		{Type: PlantC, Name: "Type C", Comfort: comfort(iv(23, 25), iv(55, 65), iv(5.5, 7.5), iv(15000, 25000), iv(0.4, 0.5))},
		{Type: PlantD, Name: "Type D", Comfort: comfort(iv(20, 22), iv(55, 70), iv(5.5, 7.0), iv(10000, 20000), iv(0.3, 0.5))},
		{Type: PlantE, Name: "Type E", Comfort: comfort(iv(23, 28), iv(60, 65), iv(5.0, 6.0), iv(15000, 20000), iv(0.2, 0.4))},
		{Type: PlantF, Name: "Type F", Comfort: comfort(iv(20, 25), iv(55, 70), iv(5.0, 7.5), iv(10000, 30000), iv(0.4, 0.6))},
	}
}

// DefaultDevices returns the five sensors and five actuators installed in
// every greenhouse.
func DefaultDevices() []DeviceSpec {
	read := map[string]Effect{ActionRead: {Read: true}}
	set := Effect{Setpoint: true}

	return []DeviceSpec{
		NewDeviceSpec("temperature", KindSensor, ParamTemperature, "°C", iv(0, 50), read),
		NewDeviceSpec("soil_humidity", KindSensor, ParamSoilMoisture, "%", iv(0, 100), read),
		NewDeviceSpec("soil_ph", KindSensor, ParamSoilPH, "pH", iv(0, 14), read),
		NewDeviceSpec("luminosity", KindSensor, ParamIlluminance, "lux", iv(0, 100000), read),
		NewDeviceSpec("ventilation", KindSensor, ParamVentilation, "m/s", iv(0, 5), read),

		NewDeviceSpec("temperature_control", KindActuator, ParamTemperature, "°C", iv(0, 50), map[string]Effect{
			"heat": {Delta: 2}, "cool": {Delta: -2}, "off": {}, ActionSet: set,
		}),
		NewDeviceSpec("irrigation", KindActuator, ParamSoilMoisture, "%", iv(0, 100), map[string]Effect{
			"irrigate": {Delta: 10}, "stop": {}, ActionSet: set,
		}),
		NewDeviceSpec("ph_control", KindActuator, ParamSoilPH, "pH", iv(0, 14), map[string]Effect{
			"increase_ph": {Delta: 0.5}, "decrease_ph": {Delta: -0.5}, "off": {}, ActionSet: set,
		}),
		NewDeviceSpec("lighting", KindActuator, ParamIlluminance, "lux", iv(0, 100000), map[string]Effect{
			"on": {Delta: 5000}, "dim": {Delta: -5000}, "off": {}, ActionSet: set,
		}),
		NewDeviceSpec("fan", KindActuator, ParamVentilation, "m/s", iv(0, 5), map[string]Effect{
			"on": {Delta: 0.1}, "off": setTo(0), "low": setTo(0.2), "medium": setTo(0.4), "high": setTo(0.6), ActionSet: set,
		}),
	}
}
