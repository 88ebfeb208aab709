package cpu

// buildCBTable constructs the 256-entry 0xCB-prefixed table. The byte
// splits cleanly into two bit fields: bits 7-6 select the group (rotate/
// shift, BIT, RES, SET) and bits 2-0 select the r8 operand; for the
// rotate/shift group bits 5-3 select which of the eight operations runs,
// for BIT/RES/SET bits 5-3 are the bit index.
func buildCBTable() {
	for r := uint8(0); r < 8; r++ {
		for sub := uint8(0); sub < 8; sub++ {
			r, sub := r, sub
			op := sub<<3 | r
			cbTable[op] = func(c *CPU) (int, error) {
				v := c.getR8(r)
				var result uint8
				switch sub {
				case 0:
					result = c.rlc(v, true)
				case 1:
					result = c.rrc(v, true)
				case 2:
					result = c.rl(v, true)
				case 3:
					result = c.rr(v, true)
				case 4:
					result = c.sla(v)
				case 5:
					result = c.sra(v)
				case 6:
					result = c.swap(v)
				default:
					result = c.srl(v)
				}
				c.setR8(r, result)
				if r == r8HLInd {
					return 16, nil
				}
				return 8, nil
			}
		}

		for bit := uint8(0); bit < 8; bit++ {
			r, bit := r, bit

			bitOp := 0x40 | bit<<3 | r
			cbTable[bitOp] = func(c *CPU) (int, error) {
				c.bit(bit, c.getR8(r))
				if r == r8HLInd {
					return 12, nil
				}
				return 8, nil
			}

			resOp := 0x80 | bit<<3 | r
			cbTable[resOp] = func(c *CPU) (int, error) {
				c.setR8(r, c.getR8(r)&^(1<<bit))
				if r == r8HLInd {
					return 16, nil
				}
				return 8, nil
			}

			setOp := 0xC0 | bit<<3 | r
			cbTable[setOp] = func(c *CPU) (int, error) {
				c.setR8(r, c.getR8(r)|1<<bit)
				if r == r8HLInd {
					return 16, nil
				}
				return 8, nil
			}
		}
	}
}
