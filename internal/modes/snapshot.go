package modes

import "time"

// intPtrToAny/float64PtrToAny/anyToIntPtr/anyToFloat64Ptr bridge the
// optional-field pointers used by the record types and the plain
// interface{} values the snapshot wire format can carry.

func intPtrToAny(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func anyToIntPtr(v interface{}) *int {
	i, ok := v.(int64)
	if !ok {
		return nil
	}
	out := int(i)
	return &out
}

func float64PtrToAny(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func anyToFloat64Ptr(v interface{}) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	out := f
	return &out
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// AircraftToMap/AircraftFromMap/AircraftKey let an AdsbMode/UatMode store
// persist and reload its Aircraft entries across a restart (spec-supplement
// "snapshot warm-start").
func AircraftToMap(a Aircraft) map[string]interface{} {
	return map[string]interface{}{
		"icao":         a.ICAO,
		"callsign":     a.Callsign,
		"registration": a.Registration,
		"type_code":    a.TypeCode,
		"altitude_ft":  intPtrToAny(a.AltitudeFt),
		"speed_kt":     intPtrToAny(a.SpeedKt),
		"heading_deg":  intPtrToAny(a.HeadingDeg),
		"vrate_fpm":    intPtrToAny(a.VerticalRateFpm),
		"squawk":       a.Squawk,
		"lat":          float64PtrToAny(a.Lat),
		"lon":          float64PtrToAny(a.Lon),
		"source":       a.Source,
		"seen_unix_ns": a.Seen.UnixNano(),
	}
}

func AircraftFromMap(m map[string]interface{}) Aircraft {
	seenNs, _ := m["seen_unix_ns"].(int64)
	return Aircraft{
		ICAO:            asString(m["icao"]),
		Callsign:        asString(m["callsign"]),
		Registration:    asString(m["registration"]),
		TypeCode:        asString(m["type_code"]),
		AltitudeFt:      anyToIntPtr(m["altitude_ft"]),
		SpeedKt:         anyToIntPtr(m["speed_kt"]),
		HeadingDeg:      anyToIntPtr(m["heading_deg"]),
		VerticalRateFpm: anyToIntPtr(m["vrate_fpm"]),
		Squawk:          asString(m["squawk"]),
		Lat:             anyToFloat64Ptr(m["lat"]),
		Lon:             anyToFloat64Ptr(m["lon"]),
		Source:          asString(m["source"]),
		Seen:            time.Unix(0, seenNs),
	}
}

func AircraftKey(a Aircraft) string { return a.ICAO }

// SensorReadingToMap/SensorReadingFromMap/SensorReadingKey do the same for
// rtl_433 readings. The Raw field is dropped from the snapshot: it is a
// debugging aid, not part of the record's merge identity.
func SensorReadingToMap(s SensorReading) map[string]interface{} {
	out := map[string]interface{}{
		"key":          s.Key,
		"model":        s.Model,
		"channel":      s.Channel,
		"seen_unix_ns": s.Seen.UnixNano(),
	}
	if s.TemperatureC != nil {
		out["temperature_c"] = *s.TemperatureC
	}
	if s.HumidityPct != nil {
		out["humidity_pct"] = *s.HumidityPct
	}
	if s.BatteryOK != nil {
		out["battery_ok"] = *s.BatteryOK
	}
	return out
}

func SensorReadingFromMap(m map[string]interface{}) SensorReading {
	seenNs, _ := m["seen_unix_ns"].(int64)
	rec := SensorReading{
		Key:     asString(m["key"]),
		Model:   asString(m["model"]),
		Channel: asString(m["channel"]),
		Seen:    time.Unix(0, seenNs),
	}
	if v, ok := m["temperature_c"].(float64); ok {
		rec.TemperatureC = &v
	}
	if v, ok := m["humidity_pct"].(float64); ok {
		rec.HumidityPct = &v
	}
	if v, ok := m["battery_ok"].(bool); ok {
		rec.BatteryOK = &v
	}
	return rec
}

func SensorReadingKey(s SensorReading) string { return s.Key }

// PagerMessageToMap/PagerMessageFromMap/PagerMessageKey persist decoded
// pager text across a restart.
func PagerMessageToMap(p PagerMessage) map[string]interface{} {
	return map[string]interface{}{
		"key":          p.Key,
		"protocol":     p.Protocol,
		"address":      p.Address,
		"function":     p.Function,
		"text":         p.Text,
		"seen_unix_ns": p.Seen.UnixNano(),
	}
}

func PagerMessageFromMap(m map[string]interface{}) PagerMessage {
	seenNs, _ := m["seen_unix_ns"].(int64)
	return PagerMessage{
		Key:      asString(m["key"]),
		Protocol: asString(m["protocol"]),
		Address:  asString(m["address"]),
		Function: asString(m["function"]),
		Text:     asString(m["text"]),
		Seen:     time.Unix(0, seenNs),
	}
}

func PagerMessageKey(p PagerMessage) string { return p.Key }

// WifiAPToMap/WifiAPFromMap/WifiAPKey persist observed access points.
func WifiAPToMap(w WifiAP) map[string]interface{} {
	return map[string]interface{}{
		"bssid":        w.BSSID,
		"essid":        w.ESSID,
		"channel":      w.Channel,
		"power":        intPtrToAny(w.Power),
		"privacy":      w.Privacy,
		"seen_unix_ns": w.Seen.UnixNano(),
	}
}

func WifiAPFromMap(m map[string]interface{}) WifiAP {
	seenNs, _ := m["seen_unix_ns"].(int64)
	return WifiAP{
		BSSID:   asString(m["bssid"]),
		ESSID:   asString(m["essid"]),
		Channel: asString(m["channel"]),
		Power:   anyToIntPtr(m["power"]),
		Privacy: asString(m["privacy"]),
		Seen:    time.Unix(0, seenNs),
	}
}

func WifiAPKey(w WifiAP) string { return w.BSSID }
