package sniffer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/sniffer/internal/core"
)

// beaconFields are the keys every Dropbox LAN sync announcement carries.
var beaconFields = []string{"version", "host_int", "namespaces", "displayname", "port"}

// DropboxBeacon decodes a Dropbox LAN sync discovery announcement. Any UTF-8,
// JSON or schema mismatch is ErrInvalidPacket.
func DropboxBeacon(payload []byte) (core.Application, error) {
	if !utf8.Valid(payload) {
		return nil, core.ErrInvalidPacket
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, core.ErrInvalidPacket
	}

	// host_int is a 128-bit integer; json.Number keeps its digits intact.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, core.ErrInvalidPacket
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, core.ErrInvalidPacket
	}
	for _, key := range beaconFields {
		if _, ok := doc[key]; !ok {
			return nil, core.ErrInvalidPacket
		}
	}
	hostInt, ok := doc["host_int"].(json.Number)
	if !ok {
		return nil, core.ErrInvalidPacket
	}
	// the only number that is kept as text
	doc["host_int"] = hostInt.String()

	beacon := &core.DropboxBeacon{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     beacon,
		TagName:    "mapstructure",
		DecodeHook: checkedNumber,
	})
	if err != nil {
		return nil, core.ErrInvalidPacket
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, core.ErrInvalidPacket
	}
	return beacon, nil
}

var numberType = reflect.TypeOf(json.Number(""))

// checkedNumber converts a json.Number to the kind of its target field and
// fails when it does not fit. Numbers never decode into strings.
func checkedNumber(from, to reflect.Type, data any) (any, error) {
	if from != numberType {
		return data, nil
	}
	n := string(data.(json.Number))
	zero := reflect.Zero(to)
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(n, 10, 64)
		if err != nil || zero.OverflowInt(v) {
			return nil, fmt.Errorf("%s does not fit %s", n, to)
		}
		return v, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(n, 10, 64)
		if err != nil || zero.OverflowUint(v) {
			return nil, fmt.Errorf("%s does not fit %s", n, to)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(n, 64)
		if err != nil || zero.OverflowFloat(v) {
			return nil, fmt.Errorf("%s does not fit %s", n, to)
		}
		return v, nil
	case reflect.Interface:
		return data, nil
	}
	return nil, fmt.Errorf("number %s for %s field", n, to)
}
