package pose

// NumLandmarks is the size of the pose model's landmark vocabulary.
const NumLandmarks = 33

// Names lists landmark identifiers in the model's canonical order.
var Names = [NumLandmarks]string{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}

// Connections are the anatomical segments drawn between landmark indices.
var Connections = [][2]int{
	// Face.
	{0, 1}, {1, 2}, {2, 3}, {3, 7},
	{0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10},
	// Torso.
	{11, 12}, {11, 23}, {12, 24}, {23, 24},
	// Left arm and hand.
	{11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21}, {17, 19},
	// Right arm and hand.
	{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
	// Left leg.
	{23, 25}, {25, 27}, {27, 29}, {29, 31}, {27, 31},
	// Right leg.
	{24, 26}, {26, 28}, {28, 30}, {30, 32}, {28, 32},
}

// Landmark is a single estimated body point. For camera landmarks X and Y are
// normalized to the image and Z is relative depth; for world landmarks all
// three are metres around the hip center.
type Landmark struct {
	X, Y, Z    float64
	Visibility float64
}

// Landmarks holds NumLandmarks entries in canonical order. A nil value means
// the model produced nothing for the frame.
type Landmarks []Landmark

func (l Landmarks) Present() bool {
	return l != nil
}

// Result is the detector output for one frame. Either representation may be
// absent independently of the other.
type Result struct {
	Camera Landmarks
	World  Landmarks
}
