package discovery

import (
	"encoding/binary"
	"fmt"
)

// buildAnnouncement builds an unsolicited mDNS response advertising
// one PTR/SRV/TXT/A record set for svcType. Names are written in
// full; RFC 6762's name-compression scheme is not implemented since
// four records fit comfortably under the common 9000-byte mDNS/UDP
// ceiling without it.
func buildAnnouncement(cfg Config, svcType string) []byte {
	serviceName := svcType + ".local"
	instanceName := cfg.HostName + "." + serviceName
	hostName := cfg.HostName + ".local"

	var answers [][]byte
	answers = append(answers, ptrRecord(serviceName, instanceName))
	answers = append(answers, srvRecord(instanceName, hostName, cfg.Port))
	answers = append(answers, txtRecord(instanceName, txtFields(cfg)))
	if ip4 := cfg.LocalIP.To4(); ip4 != nil {
		answers = append(answers, aRecord(hostName, ip4))
	}

	var buf []byte
	buf = append(buf, header(len(answers))...)
	for _, a := range answers {
		buf = append(buf, a...)
	}
	return buf
}

func header(answerCount int) []byte {
	h := make([]byte, 12)
	binary.BigEndian.PutUint16(h[0:2], 0)      // ID
	binary.BigEndian.PutUint16(h[2:4], 0x8400) // response, authoritative
	binary.BigEndian.PutUint16(h[4:6], 0)      // QDCOUNT
	binary.BigEndian.PutUint16(h[6:8], uint16(answerCount))
	binary.BigEndian.PutUint16(h[8:10], 0)  // NSCOUNT
	binary.BigEndian.PutUint16(h[10:12], 0) // ARCOUNT
	return h
}

func encodeName(name string) []byte {
	var out []byte
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			label := name[start:i]
			if len(label) > 0 {
				out = append(out, byte(len(label)))
				out = append(out, label...)
			}
			start = i + 1
		}
	}
	out = append(out, 0x00)
	return out
}

func recordHeader(name string, rrType uint16, class uint16, ttl uint32, rdata []byte) []byte {
	var out []byte
	out = append(out, encodeName(name)...)
	typeClass := make([]byte, 8)
	binary.BigEndian.PutUint16(typeClass[0:2], rrType)
	binary.BigEndian.PutUint16(typeClass[2:4], class)
	binary.BigEndian.PutUint32(typeClass[4:8], ttl)
	out = append(out, typeClass...)
	rdlen := make([]byte, 2)
	binary.BigEndian.PutUint16(rdlen, uint16(len(rdata)))
	out = append(out, rdlen...)
	out = append(out, rdata...)
	return out
}

func ptrRecord(serviceName, instanceName string) []byte {
	rdata := encodeName(instanceName)
	return recordHeader(serviceName, typePTR, classIN, defaultTTL, rdata)
}

func srvRecord(instanceName, target string, port int) []byte {
	var rdata []byte
	prio := make([]byte, 2)
	weight := make([]byte, 2)
	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	rdata = append(rdata, prio...)
	rdata = append(rdata, weight...)
	rdata = append(rdata, portBytes...)
	rdata = append(rdata, encodeName(target)...)
	return recordHeader(instanceName, typeSRV, classIN|cacheFlushBit, defaultTTL, rdata)
}

func txtRecord(instanceName string, fields map[string]string) []byte {
	var rdata []byte
	for k, v := range fields {
		entry := fmt.Sprintf("%s=%s", k, v)
		if len(entry) > 255 {
			entry = entry[:255]
		}
		rdata = append(rdata, byte(len(entry)))
		rdata = append(rdata, entry...)
	}
	if len(rdata) == 0 {
		rdata = []byte{0x00}
	}
	return recordHeader(instanceName, typeTXT, classIN|cacheFlushBit, defaultTTL, rdata)
}

func aRecord(hostName string, ip4 []byte) []byte {
	return recordHeader(hostName, typeA, classIN|cacheFlushBit, defaultTTL, ip4)
}

func txtFields(cfg Config) map[string]string {
	fields := map[string]string{
		"version":  cfg.Version,
		"platform": cfg.Platform,
		"deviceId": cfg.DeviceID,
	}
	for cap, enabled := range cfg.Capabilities {
		if enabled {
			fields[cap] = "1"
		} else {
			fields[cap] = "0"
		}
	}
	return fields
}
