package marching

import "testing"

func TestTablesAgree(t *testing.T) {
	for cube := 0; cube < 256; cube++ {
		row := TriTable[cube]

		n := 0
		for n < 16 && row[n] != -1 {
			n++
		}
		if n%3 != 0 || n > 15 {
			t.Fatalf("Configuration %d lists %d edges", cube, n)
		}
		for i := n; i < 16; i++ {
			if row[i] != -1 {
				t.Fatalf("Configuration %d is not -1 terminated", cube)
			}
		}

		var used uint16
		for _, e := range row[:n] {
			used |= 1 << uint(e)
		}
		if used != EdgeTable[cube] {
			t.Errorf("Configuration %d uses edges %03x, edge table has %03x", cube, used, EdgeTable[cube])
		}

		var crossed uint16
		for e, c := range EdgeCorners {
			if (cube>>c[0])&1 != (cube>>c[1])&1 {
				crossed |= 1 << uint(e)
			}
		}
		if crossed != EdgeTable[cube] {
			t.Errorf("Configuration %d crosses %03x, edge table has %03x", cube, crossed, EdgeTable[cube])
		}
	}
}

func TestConfigurationBits(t *testing.T) {
	d := [8]float32{0, 1, 1, 1, 1, 1, 1, 0}
	if got := Configuration(&d, 0.5); got != 0x81 {
		t.Errorf("Configuration = %#x, want 0x81", got)
	}
	if EdgeTable[0] != 0 || EdgeTable[255] != 0 {
		t.Error("Uniform configurations must cross no edges")
	}
}
